package api

import (
	"net/http"

	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	handler
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.db)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Prevent self-deletion.
	claims := GetClaims(r.Context())
	if claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := store.GetUser(r.Context(), h.db, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.DeleteUser(r.Context(), h.db, id); err != nil {
		if errors.Is(err, store.ErrStale) {
			jsonError(w, http.StatusConflict, "user has items on loan")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.publish(nil, live.Users, live.Items, live.Favorites)
	h.logger.Info("user deleted", "user", claims.Username, "deleted_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
