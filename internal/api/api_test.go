package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/boro/internal/activity"
	"github.com/erazemk/boro/internal/auth"
	"github.com/erazemk/boro/internal/db"
	"github.com/erazemk/boro/internal/eventlog"
	"github.com/erazemk/boro/internal/lending"
	"github.com/erazemk/boro/internal/live"
	"github.com/erazemk/boro/internal/model"
	"github.com/erazemk/boro/internal/ratelimit"
	"github.com/erazemk/boro/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"
)

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
}

type session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func setupTestServer(t *testing.T) *testEnv {
	return newTestEnv(t, ratelimit.New(1000, 1000))
}

func newTestEnv(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hub := live.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)

	events, err := eventlog.Open("", logger)
	if err != nil {
		t.Fatalf("opening event log: %v", err)
	}
	registry := activity.NewRegistry(hub, activity.StoreFetcher{DB: database}, events, logger)

	router := NewRouter(Deps{
		DB:           database,
		Issuer:       auth.NewIssuer(testJWTSecret, time.Hour),
		Hub:          hub,
		Lending:      lending.NewService(database, hub, logger),
		Activity:     registry,
		Logger:       logger,
		LoginLimiter: limiter,
	})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		registry.Close()
		server.Close()
		cancel()
		hub.Shutdown()
		events.Close()
	})

	return &testEnv{server: server, db: database}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// expect checks the status code and decodes the body into target when given.
func expect(t *testing.T, resp *http.Response, status int, target any) {
	t.Helper()
	if resp.StatusCode != status {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s",
			resp.Request.Method, resp.Request.URL.Path, status, resp.StatusCode, body)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func (e *testEnv) register(t *testing.T, username, displayName string) session {
	t.Helper()
	var s session
	expect(t, e.request(t, "POST", "/api/auth/register", "", map[string]string{
		"username":     username,
		"password":     testPassword,
		"display_name": displayName,
	}), http.StatusCreated, &s)
	if s.Token == "" {
		t.Fatal("empty token from register")
	}
	return s
}

func (e *testEnv) createItem(t *testing.T, token, title, mode string) model.Item {
	t.Helper()
	var item model.Item
	expect(t, e.request(t, "POST", "/api/items", token, map[string]string{
		"title":       title,
		"borrow_mode": mode,
	}), http.StatusCreated, &item)
	return item
}

func inDays(n int) string {
	return time.Now().AddDate(0, 0, n).Format(time.DateOnly)
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "ana", "Ana")

	resp := env.request(t, "POST", "/api/auth/login", "", map[string]string{"username": "ana", "password": "wrong"})
	expect(t, resp, http.StatusUnauthorized, nil)

	var s session
	resp = env.request(t, "POST", "/api/auth/login", "", map[string]string{"username": "ana", "password": testPassword})
	expect(t, resp, http.StatusOK, &s)
	if s.Token == "" || s.User.Username != "ana" {
		t.Errorf("unexpected login response: %+v", s)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, ratelimit.New(0.001, 2))

	creds := map[string]string{"username": "nobody", "password": "whatever"}
	expect(t, env.request(t, "POST", "/api/auth/login", "", creds), http.StatusUnauthorized, nil)
	expect(t, env.request(t, "POST", "/api/auth/login", "", creds), http.StatusUnauthorized, nil)

	var body errorBody
	expect(t, env.request(t, "POST", "/api/auth/login", "", creds), http.StatusTooManyRequests, &body)
	if body.Code != "RATE_LIMITED" {
		t.Errorf("expected RATE_LIMITED, got %q", body.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestServer(t)
	env.register(t, "ana", "Ana")

	resp := env.request(t, "POST", "/api/auth/register", "", map[string]string{"username": "ana", "password": testPassword})
	expect(t, resp, http.StatusConflict, nil)

	var body struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	resp = env.request(t, "POST", "/api/auth/register", "", map[string]string{"username": "bo", "password": "short"})
	expect(t, resp, http.StatusBadRequest, &body)
	if body.Code != "VALIDATION" {
		t.Errorf("expected VALIDATION, got %q", body.Code)
	}
	if body.Details["password"] == "" || body.Details["username"] == "" {
		t.Errorf("expected password and username details, got %v", body.Details)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	expect(t, env.request(t, "GET", "/api/items", "", nil), http.StatusUnauthorized, nil)
	expect(t, env.request(t, "GET", "/api/items", "garbage", nil), http.StatusUnauthorized, nil)
	expect(t, env.request(t, "GET", "/healthz", "", nil), http.StatusOK, nil)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)
	s := env.register(t, "ana", "Ana")

	var me model.User
	expect(t, env.request(t, "GET", "/api/auth/me", s.Token, nil), http.StatusOK, &me)
	if me.ID != s.User.ID {
		t.Errorf("expected %s, got %s", s.User.ID, me.ID)
	}

	expect(t, env.request(t, "POST", "/api/auth/logout", s.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "GET", "/api/auth/me", s.Token, nil), http.StatusUnauthorized, nil)
}

func TestProfileAndPassword(t *testing.T) {
	env := setupTestServer(t)
	s := env.register(t, "ana", "Ana")

	var me model.User
	expect(t, env.request(t, "PUT", "/api/auth/profile", s.Token, map[string]string{
		"display_name": "Ana Novak",
		"email":        "ana@example.com",
	}), http.StatusOK, &me)
	if me.DisplayName != "Ana Novak" || me.Email != "ana@example.com" {
		t.Errorf("profile not updated: %+v", me)
	}

	expect(t, env.request(t, "PUT", "/api/auth/profile", s.Token, map[string]string{"email": "nope"}), http.StatusBadRequest, nil)

	expect(t, env.request(t, "PUT", "/api/auth/password", s.Token, map[string]string{
		"current_password": "wrong-password",
		"new_password":     "another-password",
	}), http.StatusUnauthorized, nil)
	expect(t, env.request(t, "PUT", "/api/auth/password", s.Token, map[string]string{
		"current_password": testPassword,
		"new_password":     "another-password",
	}), http.StatusOK, nil)
	expect(t, env.request(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "ana",
		"password": "another-password",
	}), http.StatusOK, nil)
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	user := env.register(t, "user1", "")

	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if _, err := store.CreateUser(context.Background(), env.db, "admin", string(hash), model.RoleAdmin, store.UserProfile{}); err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	var admin session
	expect(t, env.request(t, "POST", "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": testPassword,
	}), http.StatusOK, &admin)

	expect(t, env.request(t, "GET", "/api/users", user.Token, nil), http.StatusForbidden, nil)

	var users []model.User
	expect(t, env.request(t, "GET", "/api/users", admin.Token, nil), http.StatusOK, &users)
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	expect(t, env.request(t, "DELETE", "/api/users/"+admin.User.ID, admin.Token, nil), http.StatusBadRequest, nil)
	expect(t, env.request(t, "DELETE", "/api/users/"+user.User.ID, admin.Token, nil), http.StatusOK, nil)

	// The deleted user's token stops working.
	expect(t, env.request(t, "GET", "/api/auth/me", user.Token, nil), http.StatusUnauthorized, nil)
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	other := env.register(t, "bor", "Bor")

	item := env.createItem(t, owner.Token, "Drill", "")
	if item.BorrowMode != model.BorrowModeRequest || item.Status != model.ItemStatusAvailable {
		t.Errorf("unexpected defaults: mode=%s status=%s", item.BorrowMode, item.Status)
	}

	expect(t, env.request(t, "POST", "/api/items", owner.Token, map[string]string{"title": ""}), http.StatusBadRequest, nil)
	expect(t, env.request(t, "POST", "/api/items", owner.Token, map[string]string{
		"title":       "Ladder",
		"borrow_mode": "maybe",
	}), http.StatusBadRequest, nil)

	var items []model.Item
	expect(t, env.request(t, "GET", "/api/items", owner.Token, nil), http.StatusOK, &items)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	expect(t, env.request(t, "GET", "/api/items", other.Token, nil), http.StatusOK, &items)
	if len(items) != 0 {
		t.Errorf("expected empty storage for other user, got %d", len(items))
	}

	var storage storageResponse
	expect(t, env.request(t, "GET", "/api/storages/"+owner.User.ID, other.Token, nil), http.StatusOK, &storage)
	if storage.Owner.DisplayName != "Olga" || len(storage.Items) != 1 {
		t.Errorf("unexpected storage view: %+v", storage)
	}
	expect(t, env.request(t, "GET", "/api/storages/usr_missing", other.Token, nil), http.StatusNotFound, nil)

	update := map[string]string{"title": "Cordless drill", "borrow_mode": "free"}
	expect(t, env.request(t, "PUT", "/api/items/"+item.ID, other.Token, update), http.StatusForbidden, nil)

	var updated model.Item
	expect(t, env.request(t, "PUT", "/api/items/"+item.ID, owner.Token, update), http.StatusOK, &updated)
	if updated.Title != "Cordless drill" || updated.BorrowMode != model.BorrowModeFree {
		t.Errorf("item not updated: %+v", updated)
	}

	expect(t, env.request(t, "DELETE", "/api/items/"+item.ID, other.Token, nil), http.StatusForbidden, nil)
	expect(t, env.request(t, "DELETE", "/api/items/"+item.ID, owner.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "GET", "/api/items/"+item.ID, owner.Token, nil), http.StatusNotFound, nil)
}

func TestBorrowRequestFlow(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	borrower := env.register(t, "bor", "Bor")
	item := env.createItem(t, owner.Token, "Tent", model.BorrowModeRequest)

	borrow := map[string]string{"until": inDays(7), "message": "for the weekend"}
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/borrow", owner.Token, borrow), http.StatusForbidden, nil)
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/borrow", borrower.Token, map[string]string{"until": "soon"}), http.StatusBadRequest, nil)

	var out lending.Outcome
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/borrow", borrower.Token, borrow), http.StatusCreated, &out)
	if out.BorrowRequest == nil || out.Item.Status != model.ItemStatusRequested {
		t.Fatalf("expected pending request and requested item, got %+v", out)
	}

	// A second borrow attempt conflicts with the pending request.
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/borrow", borrower.Token, borrow), http.StatusConflict, nil)

	var reqs requestsResponse
	expect(t, env.request(t, "GET", "/api/requests", owner.Token, nil), http.StatusOK, &reqs)
	if len(reqs.Incoming.Borrow) != 1 {
		t.Fatalf("expected 1 incoming borrow request, got %d", len(reqs.Incoming.Borrow))
	}
	expect(t, env.request(t, "GET", "/api/requests", borrower.Token, nil), http.StatusOK, &reqs)
	if len(reqs.Outgoing.Borrow) != 1 {
		t.Fatalf("expected 1 outgoing borrow request, got %d", len(reqs.Outgoing.Borrow))
	}

	path := "/api/requests/borrow/" + out.BorrowRequest.ID
	expect(t, env.request(t, "POST", path+"/approve", borrower.Token, nil), http.StatusForbidden, nil)
	expect(t, env.request(t, "POST", path+"/shrug", owner.Token, nil), http.StatusNotFound, nil)
	expect(t, env.request(t, "POST", path+"/approve", owner.Token, nil), http.StatusOK, &out)
	if out.Item.Status != model.ItemStatusBorrowed || out.Item.HolderID != borrower.User.ID {
		t.Fatalf("expected item borrowed by %s, got %+v", borrower.User.ID, out.Item)
	}

	// Request-mode extensions need the owner's approval.
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/extend", borrower.Token, map[string]string{"until": inDays(10)}), http.StatusCreated, &out)
	if out.ExtendRequest == nil {
		t.Fatal("expected extend request")
	}
	expect(t, env.request(t, "POST", "/api/requests/extend/"+out.ExtendRequest.ID+"/approve", owner.Token, nil), http.StatusOK, &out)
	if got := out.Item.BorrowedUntil.In(time.Local).Format(time.DateOnly); got != inDays(10) {
		t.Errorf("expected due date %s, got %s", inDays(10), got)
	}

	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/return", owner.Token, nil), http.StatusForbidden, nil)
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/return", borrower.Token, nil), http.StatusOK, &out)
	if out.Item.Status != model.ItemStatusAvailable || out.Item.HolderID != owner.User.ID {
		t.Errorf("expected item back with owner, got %+v", out.Item)
	}
}

func TestFreeBorrowNotifiesOwner(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	borrower := env.register(t, "bor", "Bor")
	item := env.createItem(t, owner.Token, "Ladder", model.BorrowModeFree)

	var out lending.Outcome
	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/borrow", borrower.Token, map[string]string{"until": inDays(3)}), http.StatusOK, &out)
	if out.Item.Status != model.ItemStatusBorrowed {
		t.Fatalf("expected borrowed, got %s", out.Item.Status)
	}

	// Lent items cannot be deleted.
	expect(t, env.request(t, "DELETE", "/api/items/"+item.ID, owner.Token, nil), http.StatusConflict, nil)

	var notifications []model.Notification
	expect(t, env.request(t, "GET", "/api/notifications", owner.Token, nil), http.StatusOK, &notifications)
	if len(notifications) != 1 || notifications[0].Type != model.NotificationBorrowed || notifications[0].Read {
		t.Fatalf("unexpected notifications: %+v", notifications)
	}

	expect(t, env.request(t, "GET", "/api/notifications?limit=0", owner.Token, nil), http.StatusBadRequest, nil)
	expect(t, env.request(t, "POST", "/api/notifications/"+notifications[0].ID+"/read", borrower.Token, nil), http.StatusNotFound, nil)
	expect(t, env.request(t, "POST", "/api/notifications/"+notifications[0].ID+"/read", owner.Token, nil), http.StatusOK, nil)

	var readAll map[string]int64
	expect(t, env.request(t, "POST", "/api/notifications/read-all", owner.Token, nil), http.StatusOK, &readAll)
	if readAll["updated"] != 0 {
		t.Errorf("expected nothing left to mark read, got %d", readAll["updated"])
	}
}

func TestFavorites(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	fan := env.register(t, "fan", "Fan")
	item := env.createItem(t, owner.Token, "Kayak", model.BorrowModeRequest)

	expect(t, env.request(t, "PUT", "/api/favorites/storages/"+fan.User.ID, fan.Token, nil), http.StatusBadRequest, nil)
	expect(t, env.request(t, "PUT", "/api/favorites/storages/usr_missing", fan.Token, nil), http.StatusNotFound, nil)
	expect(t, env.request(t, "PUT", "/api/favorites/storages/"+owner.User.ID, fan.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "PUT", "/api/favorites/storages/"+owner.User.ID, fan.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "PUT", "/api/favorites/items/"+item.ID, fan.Token, nil), http.StatusOK, nil)

	var favs favoritesResponse
	expect(t, env.request(t, "GET", "/api/favorites", fan.Token, nil), http.StatusOK, &favs)
	if len(favs.Storages) != 1 || favs.Storages[0].OwnerName != "Olga" {
		t.Errorf("unexpected favorite storages: %+v", favs.Storages)
	}
	if len(favs.Items) != 1 || favs.Items[0].ItemTitle != "Kayak" {
		t.Errorf("unexpected favorite items: %+v", favs.Items)
	}

	expect(t, env.request(t, "DELETE", "/api/favorites/storages/"+owner.User.ID, fan.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "DELETE", "/api/favorites/items/"+item.ID, fan.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "GET", "/api/favorites", fan.Token, nil), http.StatusOK, &favs)
	if len(favs.Storages) != 0 || len(favs.Items) != 0 {
		t.Errorf("expected no favorites, got %+v", favs)
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := range 40 {
		for y := range 30 {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func (e *testEnv) upload(t *testing.T, token, itemID string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "photo.png")
	part.Write(data)
	mw.Close()

	req, _ := http.NewRequest("POST", e.server.URL+"/api/items/"+itemID+"/images", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("uploading image: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestItemImages(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	other := env.register(t, "bor", "Bor")
	item := env.createItem(t, owner.Token, "Bike", "")
	data := testPNG(t)

	expect(t, env.upload(t, other.Token, item.ID, data), http.StatusForbidden, nil)
	expect(t, env.upload(t, owner.Token, item.ID, []byte("not an image")), http.StatusBadRequest, nil)

	var img model.ItemImage
	for range model.MaxImagesPerItem {
		expect(t, env.upload(t, owner.Token, item.ID, data), http.StatusCreated, &img)
	}
	expect(t, env.upload(t, owner.Token, item.ID, data), http.StatusConflict, nil)

	resp := env.request(t, "GET", img.URL, other.Token, nil)
	expect(t, resp, http.StatusOK, nil)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}

	expect(t, env.request(t, "DELETE", img.URL, other.Token, nil), http.StatusForbidden, nil)
	expect(t, env.request(t, "DELETE", img.URL, owner.Token, nil), http.StatusOK, nil)
	expect(t, env.request(t, "GET", img.URL, owner.Token, nil), http.StatusNotFound, nil)

	var got model.Item
	expect(t, env.request(t, "GET", "/api/items/"+item.ID, owner.Token, nil), http.StatusOK, &got)
	if len(got.Images) != model.MaxImagesPerItem-1 {
		t.Errorf("expected %d images, got %d", model.MaxImagesPerItem-1, len(got.Images))
	}
}

func TestActivityEndpoint(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	borrower := env.register(t, "bor", "Bor")
	lent := env.createItem(t, owner.Token, "Ladder", model.BorrowModeFree)
	env.createItem(t, owner.Token, "Saw", model.BorrowModeRequest)

	expect(t, env.request(t, "POST", "/api/items/"+lent.ID+"/borrow", borrower.Token, map[string]string{"until": inDays(2)}), http.StatusOK, nil)

	var view activity.View
	expect(t, env.request(t, "GET", "/api/activity", owner.Token, nil), http.StatusOK, &view)
	if view.Counts.Storage != 2 || view.Counts.Lent != 1 || view.Counts.DueSoon != 1 {
		t.Errorf("unexpected owner counts: %+v", view.Counts)
	}
	if view.Counts.UnreadNotifications != 1 {
		t.Errorf("expected 1 unread notification, got %d", view.Counts.UnreadNotifications)
	}

	expect(t, env.request(t, "GET", "/api/activity?type=lent", owner.Token, nil), http.StatusOK, &view)
	if len(view.Feed) != 1 || view.Feed[0].Item.ID != lent.ID {
		t.Errorf("expected only the lent ladder, got %+v", view.Feed)
	}

	expect(t, env.request(t, "GET", "/api/activity?q=saw", owner.Token, nil), http.StatusOK, &view)
	if len(view.Feed) != 1 || view.Feed[0].Item.Title != "Saw" {
		t.Errorf("expected only the saw, got %+v", view.Feed)
	}

	expect(t, env.request(t, "GET", "/api/activity", borrower.Token, nil), http.StatusOK, &view)
	if view.Counts.Borrowed != 1 || view.Counts.Storage != 0 {
		t.Errorf("unexpected borrower counts: %+v", view.Counts)
	}

	expect(t, env.request(t, "GET", "/api/activity?type=everything", owner.Token, nil), http.StatusBadRequest, nil)
}

func TestActivityStream(t *testing.T) {
	env := setupTestServer(t)
	owner := env.register(t, "olga", "Olga")
	borrower := env.register(t, "bor", "Bor")
	item := env.createItem(t, owner.Token, "Ladder", model.BorrowModeFree)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/activity/stream?type=borrowed&token=" + borrower.Token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	next := func(cond func(activity.View) bool) activity.View {
		t.Helper()
		for {
			var v activity.View
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				t.Fatalf("reading view: %v", err)
			}
			if cond(v) {
				return v
			}
		}
	}

	next(func(v activity.View) bool { return len(v.Feed) == 0 })

	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/borrow", borrower.Token, map[string]string{"until": inDays(7)}), http.StatusOK, nil)
	v := next(func(v activity.View) bool { return v.Counts.Borrowed == 1 })
	if len(v.Feed) != 1 || v.Feed[0].Item.ID != item.ID {
		t.Fatalf("expected the borrowed ladder in the feed, got %+v", v.Feed)
	}

	expect(t, env.request(t, "POST", "/api/items/"+item.ID+"/return", borrower.Token, nil), http.StatusOK, nil)
	v = next(func(v activity.View) bool { return v.Counts.Borrowed == 0 })
	if len(v.Log) == 0 || v.Log[0].Kind != model.ActivityReturned {
		t.Errorf("expected a returned event, got %+v", v.Log)
	}
}

func TestStreamRequiresToken(t *testing.T) {
	env := setupTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/activity/stream"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", resp)
	}
}
