package api

import (
	"net/http"
	"time"

	"github.com/erazemk/boro/internal/duedate"
	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/lending"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

// LendingHandler exposes the borrow, extend and return workflow.
type LendingHandler struct {
	handler
	Lending *lending.Service
}

type borrowRequest struct {
	From    string `json:"from"`
	Until   string `json:"until" validate:"required"`
	Message string `json:"message" validate:"max=500"`
}

type extendRequest struct {
	Until   string `json:"until" validate:"required"`
	Message string `json:"message" validate:"max=500"`
}

type requestsResponse struct {
	Incoming model.PendingRequests `json:"incoming"`
	Outgoing model.PendingRequests `json:"outgoing"`
}

// Borrow handles POST /api/items/{id}/borrow.
func (h *LendingHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	until, err := parseDate("until", req.Until)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := lending.BorrowInput{Until: until, Message: req.Message}
	if req.From != "" {
		from, err := parseDate("from", req.From)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		in.From = &from
	}

	out, err := h.Lending.Borrow(r.Context(), userID(r), r.PathValue("id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if out.BorrowRequest != nil {
		status = http.StatusCreated
	}
	jsonResponse(w, status, out)
}

// Return handles POST /api/items/{id}/return.
func (h *LendingHandler) Return(w http.ResponseWriter, r *http.Request) {
	out, err := h.Lending.Return(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// Extend handles POST /api/items/{id}/extend.
func (h *LendingHandler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	until, err := parseDate("until", req.Until)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.Lending.Extend(r.Context(), userID(r), r.PathValue("id"), lending.ExtendInput{
		Until:   until,
		Message: req.Message,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if out.ExtendRequest != nil {
		status = http.StatusCreated
	}
	jsonResponse(w, status, out)
}

// Requests handles GET /api/requests: pending requests waiting on the caller
// and the caller's own recent requests.
func (h *LendingHandler) Requests(w http.ResponseWriter, r *http.Request) {
	incoming, err := store.ListIncomingRequests(r.Context(), h.db, userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	outgoing, err := store.ListOutgoingRequests(r.Context(), h.db, userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, requestsResponse{Incoming: incoming, Outgoing: outgoing})
}

// ResolveBorrow handles POST /api/requests/borrow/{id}/{action}.
func (h *LendingHandler) ResolveBorrow(w http.ResponseWriter, r *http.Request) {
	action, err := requestAction(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.Lending.ResolveBorrow(r.Context(), userID(r), r.PathValue("id"), action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// ResolveExtend handles POST /api/requests/extend/{id}/{action}.
func (h *LendingHandler) ResolveExtend(w http.ResponseWriter, r *http.Request) {
	action, err := requestAction(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := h.Lending.ResolveExtend(r.Context(), userID(r), r.PathValue("id"), action)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

func requestAction(r *http.Request) (lending.Action, error) {
	switch a := lending.Action(r.PathValue("action")); a {
	case lending.ActionApprove, lending.ActionReject, lending.ActionCancel:
		return a, nil
	default:
		return "", errors.NotFoundf("unknown request action %q", a)
	}
}

// parseDate reads a date sent by the client. Plain dates are taken in the
// server's time zone.
func parseDate(field, value string) (time.Time, error) {
	t, err := duedate.Parse(value, time.Local)
	if err != nil {
		return time.Time{}, errors.ValidationWithDetails("invalid date", map[string]string{
			field: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp",
		})
	}
	return t, nil
}
