package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/erazemk/boro/internal/activity"
	"github.com/erazemk/boro/internal/duedate"
	"github.com/erazemk/boro/internal/feed"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 50 * time.Second
)

// ActivityHandler serves the merged activity view, once or as a stream.
type ActivityHandler struct {
	handler
	Registry *activity.Registry
	Origins  []string
}

// Get handles GET /api/activity.
func (h *ActivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := feed.ParseFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.Registry.View(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, view.Filtered(f))
}

// Stream handles GET /api/activity/stream. It upgrades to a websocket and
// pushes the filtered view whenever it changes, until the client goes away.
func (h *ActivityHandler) Stream(w http.ResponseWriter, r *http.Request) {
	f, err := feed.ParseFilter(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.Origins}
	if len(h.Origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	uid := userID(r)

	// The aggregator is shared with the user's other sessions and must
	// outlive this request.
	agg, release := h.Registry.Acquire(context.WithoutCancel(r.Context()), uid)
	defer release()

	views, stop := agg.Watch()
	defer stop()

	// CloseRead discards client messages and cancels ctx once the peer closes.
	ctx := conn.CloseRead(r.Context())

	h.logger.Debug("activity stream opened", slog.String("user_id", uid))
	defer h.logger.Debug("activity stream closed", slog.String("user_id", uid))

	// Views are derived at write time so due-date fields match the clock.
	push := func() bool {
		v, _ := agg.ViewAt(time.Now())
		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		err := wsjson.Write(writeCtx, conn, v.Filtered(f))
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Warn("activity stream write failed",
					slog.String("user_id", uid),
					slog.String("error", err.Error()))
			}
			return false
		}
		return true
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// Overdue and due-soon change at midnight without a store change.
	midnight := time.NewTimer(time.Until(duedate.NextDay(time.Now())))
	defer midnight.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-agg.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return

		case <-views:
			if !push() {
				return
			}

		case <-midnight.C:
			midnight.Reset(time.Until(duedate.NextDay(time.Now())))
			if !push() {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
