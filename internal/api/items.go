package api

import (
	"context"
	"net/http"

	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/imaging"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

// ItemsHandler handles item CRUD, images and public storage views.
type ItemsHandler struct {
	handler
}

type itemRequest struct {
	Title       string `json:"title" validate:"required,max=120"`
	Category    string `json:"category" validate:"max=64"`
	Location    string `json:"location" validate:"max=120"`
	Note        string `json:"note" validate:"max=500"`
	Description string `json:"description" validate:"max=2000"`
	BorrowMode  string `json:"borrow_mode" validate:"omitempty,oneof=free request"`
}

func (req itemRequest) fields() store.ItemFields {
	mode := req.BorrowMode
	if mode == "" {
		mode = model.BorrowModeRequest
	}
	return store.ItemFields{
		Title:       req.Title,
		Category:    req.Category,
		Location:    req.Location,
		Note:        req.Note,
		Description: req.Description,
		BorrowMode:  mode,
	}
}

type storageResponse struct {
	Owner struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		PhotoURL    string `json:"photo_url,omitempty"`
	} `json:"owner"`
	Items []model.Item `json:"items"`
}

// List handles GET /api/items: the caller's own storage.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListOwnedItems(r.Context(), h.db, userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := store.CreateItem(r.Context(), h.db, userID(r), req.fields())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.publish(nil, live.Items)
	h.logger.Info("item created", "item_id", item.ID, "owner_id", item.OwnerID)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.item(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := h.ownedItem(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := store.UpdateItem(r.Context(), h.db, item.ID, req.fields()); err != nil {
		h.fail(w, r, staleItem(err))
		return
	}

	h.publish(nil, live.Items)
	item, err = h.item(r.Context(), item.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/items/{id}. Items that are requested or lent
// out cannot be deleted.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, err := h.ownedItem(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := store.DeleteItem(r.Context(), h.db, item.ID); err != nil {
		if errors.Is(err, store.ErrStale) {
			jsonError(w, http.StatusConflict, "item is requested or lent out")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.publish(nil, live.Items, live.Favorites)
	h.logger.Info("item deleted", "item_id", item.ID, "owner_id", item.OwnerID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles POST /api/items/{id}/images.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	item, err := h.ownedItem(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(item.Images) >= model.MaxImagesPerItem {
		jsonError(w, http.StatusConflict, "item already has the maximum number of images")
		return
	}

	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusRequestEntityTooLarge, "file too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	result, err := imaging.Process(file)
	switch {
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	img, err := store.AddItemImage(r.Context(), h.db, item.ID, result.Data, result.MIME)
	if err != nil {
		if errors.Is(err, store.ErrLimitReached) {
			jsonError(w, http.StatusConflict, "item already has the maximum number of images")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.publish(nil, live.Items)
	h.logger.Info("item image added", "item_id", item.ID, "image_id", img.ID,
		"width", result.Width, "height", result.Height, "bytes", len(result.Data))
	jsonResponse(w, http.StatusCreated, img)
}

// GetImage handles GET /api/items/{id}/images/{imageID}.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, mime, err := store.GetItemImage(r.Context(), h.db, r.PathValue("id"), r.PathValue("imageID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// DeleteImage handles DELETE /api/items/{id}/images/{imageID}.
func (h *ItemsHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	item, err := h.ownedItem(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := store.DeleteItemImage(r.Context(), h.db, item.ID, r.PathValue("imageID")); err != nil {
		if errors.Is(err, store.ErrStale) {
			jsonError(w, http.StatusNotFound, "image not found")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.publish(nil, live.Items)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image deleted"})
}

// Storage handles GET /api/storages/{userID}: another user's items as anyone
// may browse them.
func (h *ItemsHandler) Storage(w http.ResponseWriter, r *http.Request) {
	owner, err := store.GetUser(r.Context(), h.db, r.PathValue("userID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if owner == nil || owner.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	items, err := store.ListOwnedItems(r.Context(), h.db, owner.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var resp storageResponse
	resp.Owner.ID = owner.ID
	resp.Owner.DisplayName = owner.Name()
	resp.Owner.PhotoURL = owner.PhotoURL
	resp.Items = items
	if resp.Items == nil {
		resp.Items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (h *ItemsHandler) item(ctx context.Context, id string) (*model.Item, error) {
	item, err := store.GetItem(ctx, h.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, errors.NotFoundf("item %s not found", id)
	}
	return item, nil
}

// ownedItem loads the item named in the path and checks the caller owns it.
func (h *ItemsHandler) ownedItem(r *http.Request) (*model.Item, error) {
	item, err := h.item(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if item.OwnerID != userID(r) {
		return nil, errors.Forbidden("only the owner can change this item")
	}
	return item, nil
}

func staleItem(err error) error {
	if errors.Is(err, store.ErrStale) {
		return errors.Conflict("the item changed in the meantime, reload and try again")
	}
	return err
}
