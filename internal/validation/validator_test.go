package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/erazemk/boro/internal/errors"
)

type sample struct {
	Title string `json:"title" validate:"required,max=10"`
	Mode  string `json:"borrow_mode,omitempty" validate:"omitempty,oneof=free request"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidatePasses(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(sample{Title: "Drill", Mode: "free"}))
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(sample{Mode: "maybe", Email: "nope"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["title"])
	assert.Equal(t, "must be one of: free request", details["borrow_mode"])
	assert.Equal(t, "must be a valid email address", details["email"])
}
