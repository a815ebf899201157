// Package lending implements the borrow, extend and return workflow on top of
// the item state machine available -> requested -> borrowed -> available.
package lending

import (
	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/model"
)

// Action is something a user tries to do to an item.
type Action string

// Actions.
const (
	ActionBorrow        Action = "borrow"
	ActionApprove       Action = "approve"
	ActionReject        Action = "reject"
	ActionCancel        Action = "cancel"
	ActionReturn        Action = "return"
	ActionExtend        Action = "extend"
	ActionApproveExtend Action = "approve_extend"
	ActionRejectExtend  Action = "reject_extend"
	ActionCancelExtend  Action = "cancel_extend"
)

// Role is the acting user's relation to the item or request.
type Role string

// Roles.
const (
	RoleOwner     Role = "owner"
	RoleHolder    Role = "holder"
	RoleRequester Role = "requester"
	RoleOther     Role = "other"
)

type transition struct {
	from   string
	action Action
	role   Role
	mode   string // empty matches any borrow mode
	to     string
}

// transitions is the complete set of allowed moves. Anything not listed is
// rejected.
var transitions = []transition{
	{model.ItemStatusAvailable, ActionBorrow, RoleOther, model.BorrowModeFree, model.ItemStatusBorrowed},
	{model.ItemStatusAvailable, ActionBorrow, RoleOther, model.BorrowModeRequest, model.ItemStatusRequested},
	{model.ItemStatusRequested, ActionApprove, RoleOwner, "", model.ItemStatusBorrowed},
	{model.ItemStatusRequested, ActionReject, RoleOwner, "", model.ItemStatusAvailable},
	{model.ItemStatusRequested, ActionCancel, RoleRequester, "", model.ItemStatusAvailable},
	{model.ItemStatusBorrowed, ActionReturn, RoleHolder, "", model.ItemStatusAvailable},
	{model.ItemStatusBorrowed, ActionExtend, RoleHolder, "", model.ItemStatusBorrowed},
	{model.ItemStatusBorrowed, ActionApproveExtend, RoleOwner, "", model.ItemStatusBorrowed},
	{model.ItemStatusBorrowed, ActionRejectExtend, RoleOwner, "", model.ItemStatusBorrowed},
	{model.ItemStatusBorrowed, ActionCancelExtend, RoleHolder, "", model.ItemStatusBorrowed},
}

// Next returns the status an item moves to when role performs action on an
// item in status from with the given borrow mode. A move that is wrong for the
// item's status is a conflict; one the role may not make is forbidden.
func Next(from, mode string, action Action, role Role) (string, error) {
	statusMatched := false
	for _, t := range transitions {
		if t.from != from || t.action != action {
			continue
		}
		statusMatched = true
		if t.role != role {
			continue
		}
		if t.mode != "" && t.mode != mode {
			continue
		}
		return t.to, nil
	}

	if !statusMatched {
		return "", errors.Conflictf("cannot %s an item that is %s", actionVerb(action), from)
	}
	return "", errors.Forbiddenf("the %s cannot %s this item", role, actionVerb(action))
}

func actionVerb(a Action) string {
	switch a {
	case ActionApproveExtend:
		return "approve an extension of"
	case ActionRejectExtend:
		return "reject an extension of"
	case ActionCancelExtend:
		return "cancel an extension of"
	case ActionApprove:
		return "approve a request for"
	case ActionReject:
		return "reject a request for"
	case ActionCancel:
		return "cancel a request for"
	default:
		return string(a)
	}
}

// ItemRole returns userID's relation to item.
func ItemRole(item *model.Item, userID string) Role {
	switch userID {
	case item.OwnerID:
		return RoleOwner
	case item.HolderID:
		return RoleHolder
	default:
		return RoleOther
	}
}

// RequestRole returns userID's relation to a request between ownerID and
// requesterID.
func RequestRole(ownerID, requesterID, userID string) Role {
	switch userID {
	case ownerID:
		return RoleOwner
	case requesterID:
		return RoleRequester
	default:
		return RoleOther
	}
}
