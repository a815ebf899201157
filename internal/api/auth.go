package api

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/boro/internal/auth"
	"github.com/erazemk/boro/internal/errors"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/ratelimit"
	"github.com/erazemk/boro/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	handler
	Issuer  *auth.Issuer
	Limiter *ratelimit.KeyedRateLimiter
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type profileRequest struct {
	DisplayName string `json:"display_name" validate:"max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhotoURL    string `json:"photo_url" validate:"omitempty,url"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	existing, err := store.GetUserByUsername(r.Context(), h.db, req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := store.CreateUser(r.Context(), h.db, req.Username, string(hash), model.RoleUser, store.UserProfile{
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user registered", "user", user.Username)
	h.issue(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Limiter != nil && !h.Limiter.Allow(remoteHost(r)) {
		jsonError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	var req loginRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.db, req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.logger.Info("user logged in", "user", user.Username, "role", user.Role)
	h.issue(w, r, http.StatusOK, user)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, user *model.User) {
	token, claims, err := h.Issuer.Issue(user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, status, loginResponse{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(auth.DefaultTokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.db, claims.ID, expiresAt); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user logged out", "user", claims.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.db, user.ID, string(hash)); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("user changed own password", "user", user.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := h.bind(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	id := userID(r)
	err := store.UpdateUserProfile(r.Context(), h.db, id, store.UserProfile{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Names are joined into items, requests and favorites of other users.
	h.publish(nil, live.Users, live.Items, live.Requests, live.Favorites)

	user, err := h.currentUser(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

func (h *AuthHandler) currentUser(r *http.Request) (*model.User, error) {
	user, err := store.GetUser(r.Context(), h.db, userID(r))
	if err != nil {
		return nil, err
	}
	if user == nil || user.DeletedAt != nil {
		return nil, errors.Unauthorized("account no longer exists")
	}
	return user, nil
}

// remoteHost strips the port from the request's remote address.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
