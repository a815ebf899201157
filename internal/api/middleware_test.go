package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/boro/internal/auth"
	"github.com/erazemk/boro/internal/db"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/store"
)

func TestAuthMiddlewareLogsThroughInjectedLogger(t *testing.T) {
	database := db.NewTestDB(t)
	user, err := store.CreateUser(context.Background(), database, "ana", "hash", model.RoleUser, store.UserProfile{})
	require.NoError(t, err)

	issuer := auth.NewIssuer(testJWTSecret, time.Hour)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := AuthMiddleware(issuer, database, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, buf.Len())

	require.NoError(t, database.Close())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"checking token revocation"`)
}
