package lending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/model"
)

func TestNext_AllowedTransitions(t *testing.T) {
	tests := []struct {
		from   string
		mode   string
		action Action
		role   Role
		want   string
	}{
		{model.ItemStatusAvailable, model.BorrowModeFree, ActionBorrow, RoleOther, model.ItemStatusBorrowed},
		{model.ItemStatusAvailable, model.BorrowModeRequest, ActionBorrow, RoleOther, model.ItemStatusRequested},
		{model.ItemStatusRequested, model.BorrowModeRequest, ActionApprove, RoleOwner, model.ItemStatusBorrowed},
		{model.ItemStatusRequested, model.BorrowModeRequest, ActionReject, RoleOwner, model.ItemStatusAvailable},
		{model.ItemStatusRequested, model.BorrowModeRequest, ActionCancel, RoleRequester, model.ItemStatusAvailable},
		{model.ItemStatusBorrowed, model.BorrowModeFree, ActionReturn, RoleHolder, model.ItemStatusAvailable},
		{model.ItemStatusBorrowed, model.BorrowModeFree, ActionExtend, RoleHolder, model.ItemStatusBorrowed},
		{model.ItemStatusBorrowed, model.BorrowModeRequest, ActionApproveExtend, RoleOwner, model.ItemStatusBorrowed},
	}

	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+tt.from, func(t *testing.T) {
			got, err := Next(tt.from, tt.mode, tt.action, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_WrongStatusIsConflict(t *testing.T) {
	for _, tt := range []struct {
		from   string
		action Action
		role   Role
	}{
		{model.ItemStatusBorrowed, ActionBorrow, RoleOther},
		{model.ItemStatusRequested, ActionBorrow, RoleOther},
		{model.ItemStatusAvailable, ActionReturn, RoleHolder},
		{model.ItemStatusAvailable, ActionApprove, RoleOwner},
		{model.ItemStatusRequested, ActionExtend, RoleHolder},
	} {
		_, err := Next(tt.from, model.BorrowModeFree, tt.action, tt.role)
		assert.ErrorIs(t, err, errors.ErrConflict, "%s on %s", tt.action, tt.from)
	}
}

func TestNext_WrongRoleIsForbidden(t *testing.T) {
	for _, tt := range []struct {
		from   string
		action Action
		role   Role
	}{
		{model.ItemStatusAvailable, ActionBorrow, RoleOwner},
		{model.ItemStatusRequested, ActionApprove, RoleRequester},
		{model.ItemStatusRequested, ActionCancel, RoleOwner},
		{model.ItemStatusBorrowed, ActionReturn, RoleOwner},
		{model.ItemStatusBorrowed, ActionExtend, RoleOther},
		{model.ItemStatusBorrowed, ActionApproveExtend, RoleHolder},
	} {
		_, err := Next(tt.from, model.BorrowModeRequest, tt.action, tt.role)
		assert.ErrorIs(t, err, errors.ErrForbidden, "%s by %s", tt.action, tt.role)
	}
}

func TestRoles(t *testing.T) {
	item := &model.Item{OwnerID: "usr-o", HolderID: "usr-h"}
	assert.Equal(t, RoleOwner, ItemRole(item, "usr-o"))
	assert.Equal(t, RoleHolder, ItemRole(item, "usr-h"))
	assert.Equal(t, RoleOther, ItemRole(item, "usr-x"))

	assert.Equal(t, RoleOwner, RequestRole("usr-o", "usr-r", "usr-o"))
	assert.Equal(t, RoleRequester, RequestRole("usr-o", "usr-r", "usr-r"))
	assert.Equal(t, RoleOther, RequestRole("usr-o", "usr-r", "usr-x"))
}
