package api

import (
	"net/http"

	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

// FavoritesHandler handles bookmarks of storages and items.
type FavoritesHandler struct {
	handler
}

type favoritesResponse struct {
	Storages []model.FavoriteStorage `json:"storages"`
	Items    []model.FavoriteItem    `json:"items"`
}

// List handles GET /api/favorites.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	storages, err := store.ListFavoriteStorages(r.Context(), h.db, userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := store.ListFavoriteItems(r.Context(), h.db, userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := favoritesResponse{Storages: storages, Items: items}
	if resp.Storages == nil {
		resp.Storages = []model.FavoriteStorage{}
	}
	if resp.Items == nil {
		resp.Items = []model.FavoriteItem{}
	}
	jsonResponse(w, http.StatusOK, resp)
}

// AddStorage handles PUT /api/favorites/storages/{ownerID}.
func (h *FavoritesHandler) AddStorage(w http.ResponseWriter, r *http.Request) {
	ownerID := r.PathValue("ownerID")
	if ownerID == userID(r) {
		jsonError(w, http.StatusBadRequest, "cannot favorite your own storage")
		return
	}

	owner, err := store.GetUser(r.Context(), h.db, ownerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if owner == nil || owner.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.AddFavoriteStorage(r.Context(), h.db, userID(r), ownerID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish([]string{userID(r)}, live.Favorites)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "storage favorited"})
}

// RemoveStorage handles DELETE /api/favorites/storages/{ownerID}.
func (h *FavoritesHandler) RemoveStorage(w http.ResponseWriter, r *http.Request) {
	if err := store.RemoveFavoriteStorage(r.Context(), h.db, userID(r), r.PathValue("ownerID")); err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish([]string{userID(r)}, live.Favorites)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "storage unfavorited"})
}

// AddItem handles PUT /api/favorites/items/{itemID}.
func (h *FavoritesHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	item, err := store.GetItem(r.Context(), h.db, r.PathValue("itemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if item == nil || item.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.AddFavoriteItem(r.Context(), h.db, userID(r), item.ID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish([]string{userID(r)}, live.Favorites)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item favorited"})
}

// RemoveItem handles DELETE /api/favorites/items/{itemID}.
func (h *FavoritesHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := store.RemoveFavoriteItem(r.Context(), h.db, userID(r), r.PathValue("itemID")); err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish([]string{userID(r)}, live.Favorites)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item unfavorited"})
}
