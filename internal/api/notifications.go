package api

import (
	"net/http"
	"strconv"

	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

// NotificationsHandler handles the caller's notification inbox.
type NotificationsHandler struct {
	handler
}

// List handles GET /api/notifications. An optional limit (1-200) caps the
// number returned.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			h.fail(w, r, errors.ValidationWithDetails("invalid query", map[string]string{
				"limit": "must be a number between 1 and 200",
			}))
			return
		}
		limit = n
	}

	notifications, err := store.ListNotifications(r.Context(), h.db, userID(r), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, notifications)
}

// Read handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) Read(w http.ResponseWriter, r *http.Request) {
	if err := store.MarkNotificationRead(r.Context(), h.db, userID(r), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrStale) {
			jsonError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.fail(w, r, err)
		return
	}

	h.publish([]string{userID(r)}, live.Notifications)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification read"})
}

// ReadAll handles POST /api/notifications/read-all.
func (h *NotificationsHandler) ReadAll(w http.ResponseWriter, r *http.Request) {
	n, err := store.MarkAllNotificationsRead(r.Context(), h.db, userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if n > 0 {
		h.publish([]string{userID(r)}, live.Notifications)
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"updated": n})
}
