package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	intconfig "loadmatch/internal/config"
	h "loadmatch/internal/http/handlers"
	"loadmatch/internal/ledger"
	"loadmatch/internal/notify"
	"loadmatch/internal/repositories/memory"
	"loadmatch/internal/services"
)

type testServer struct {
	router *gin.Engine
	auth   services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	d := notify.NewDispatcher(store, nil)
	l := ledger.New()
	auth := services.AuthService{Store: store, Notify: d, Secret: []byte("router-secret"), TokenTTL: time.Hour}
	if err := auth.EnsureAdmin(context.Background(), "admin@example.com", "admin-password"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	a := h.API{
		Store:    store,
		Auth:     auth,
		Users:    services.UserService{Store: store, Notify: d},
		Vehicles: services.VehicleService{Store: store},
		Trips:    services.TripService{Store: store, Ledger: l, Notify: d},
		Bookings: services.BookingService{Store: store, Ledger: l, Notify: d, CancelCutoff: 24 * time.Hour},
		Docs:     services.DocsService{Store: store},
		Notify:   d,
	}
	env := intconfig.Env{CORSAllowedOrigins: []string{"*"}}
	return &testServer{router: NewRouter(env, a), auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

type tokenBody struct {
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
}

type errorBody struct {
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

type idBody struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (s *testServer) signup(t *testing.T, email, role string) tokenBody {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": email, "password": "password123", "full_name": email, "role": role,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", email, w.Code, w.Body.String())
	}
	return decode[tokenBody](t, w)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, http.MethodGet, "/api/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/db-check", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("db-check: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/api/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", w.Code)
	}
}

func TestAuthRequiredAndRoleGuards(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/bookings", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if body := decode[errorBody](t, w); body.Code != "unauthorized" || body.RequestID == "" {
		t.Fatalf("unexpected error body %+v", body)
	}
	if w := s.do(t, http.MethodGet, "/api/bookings", "not-a-jwt", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", w.Code)
	}

	customer := s.signup(t, "customer@example.com", "customer")
	if customer.Role != "customer" || customer.AccessToken == "" {
		t.Fatalf("unexpected signup response %+v", customer)
	}
	if w := s.do(t, http.MethodGet, "/api/admin/users", customer.AccessToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer on admin route: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/vehicles", customer.AccessToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer on vehicles: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/users/me", customer.AccessToken, nil); w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"email": "customer@example.com", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	adminLogin := s.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"email": "admin@example.com", "password": "admin-password"})
	if adminLogin.Code != http.StatusOK {
		t.Fatalf("admin login: %d %s", adminLogin.Code, adminLogin.Body.String())
	}
	admin := decode[tokenBody](t, adminLogin)

	owner := s.signup(t, "owner@example.com", "owner")
	customer := s.signup(t, "buyer@example.com", "customer")

	trip := map[string]any{
		"start_location": "CityA", "end_location": "CityB",
		"start_datetime": time.Now().UTC().Add(72 * time.Hour).Format(time.RFC3339),
		"price_per_unit": 10, "total_capacity": 10,
	}
	if w := s.do(t, http.MethodPost, "/api/trips", owner.AccessToken, trip); w.Code != http.StatusForbidden {
		t.Fatalf("unverified owner: expected 403, got %d %s", w.Code, w.Body.String())
	}
	for _, id := range []int64{owner.UserID, customer.UserID} {
		path := "/api/admin/users/" + strconv.FormatInt(id, 10) + "/verify"
		if w := s.do(t, http.MethodPut, path, admin.AccessToken, nil); w.Code != http.StatusOK {
			t.Fatalf("verify %d: %d %s", id, w.Code, w.Body.String())
		}
	}

	w := s.do(t, http.MethodPost, "/api/trips", owner.AccessToken, trip)
	if w.Code != http.StatusCreated {
		t.Fatalf("create trip: %d %s", w.Code, w.Body.String())
	}
	tripID := decode[idBody](t, w).ID

	var bookingIDs []int64
	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/bookings", customer.AccessToken, map[string]any{"trip_id": tripID, "cargo_size": 6})
		if w.Code != http.StatusCreated {
			t.Fatalf("create booking: %d %s", w.Code, w.Body.String())
		}
		b := decode[idBody](t, w)
		if b.Status != "pending" {
			t.Fatalf("expected pending, got %s", b.Status)
		}
		bookingIDs = append(bookingIDs, b.ID)
	}

	first := "/api/bookings/" + strconv.FormatInt(bookingIDs[0], 10)
	second := "/api/bookings/" + strconv.FormatInt(bookingIDs[1], 10)

	if w := s.do(t, http.MethodPut, first+"/accept", customer.AccessToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("customer accept: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, first+"/accept", owner.AccessToken, nil); w.Code != http.StatusOK {
		t.Fatalf("accept first: %d %s", w.Code, w.Body.String())
	}
	w = s.do(t, http.MethodPut, second+"/status?status_update=accepted", owner.AccessToken, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("accept second: expected 409, got %d %s", w.Code, w.Body.String())
	}
	if body := decode[errorBody](t, w); body.Code != "insufficient_capacity" {
		t.Fatalf("expected insufficient_capacity, got %q", body.Code)
	}
	if w := s.do(t, http.MethodPut, first+"/reject", owner.AccessToken, nil); w.Code != http.StatusConflict {
		t.Fatalf("reject accepted: expected 409, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, first+"/confirmation", customer.AccessToken, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("confirmation: %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if w := s.do(t, http.MethodGet, second+"/confirmation", customer.AccessToken, nil); w.Code != http.StatusConflict {
		t.Fatalf("pending confirmation: expected 409, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/trips/"+strconv.FormatInt(tripID, 10), customer.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get trip: %d", w.Code)
	}
	if got := decode[struct {
		Committed int64 `json:"committed_capacity"`
	}](t, w); got.Committed != 6 {
		t.Fatalf("expected committed 6, got %d", got.Committed)
	}

	w = s.do(t, http.MethodGet, "/api/notifications", customer.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("notifications: %d", w.Code)
	}
	page := decode[struct {
		Items []struct {
			ID   int64  `json:"id"`
			Kind string `json:"kind"`
		} `json:"items"`
		Unread int64 `json:"unread"`
	}](t, w)
	if len(page.Items) == 0 || page.Items[0].Kind != "booking_accepted" {
		t.Fatalf("expected newest notification booking_accepted, got %+v", page.Items)
	}
	read := "/api/notifications/" + strconv.FormatInt(page.Items[0].ID, 10) + "/read"
	if w := s.do(t, http.MethodPut, read, owner.AccessToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign mark read: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPut, read, customer.AccessToken, nil); w.Code != http.StatusOK {
		t.Fatalf("mark read: %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/notifications/unread-count", customer.AccessToken, nil)
	if got := decode[struct {
		Unread int64 `json:"unread"`
	}](t, w); got.Unread != page.Unread-1 {
		t.Fatalf("expected unread %d, got %d", page.Unread-1, got.Unread)
	}
	ownerPath := "/api/notifications?user_id=" + strconv.FormatInt(owner.UserID, 10)
	if w := s.do(t, http.MethodGet, ownerPath, customer.AccessToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign notifications: expected 403, got %d", w.Code)
	}

	if w := s.do(t, http.MethodDelete, "/api/admin/users/"+strconv.FormatInt(admin.UserID, 10), admin.AccessToken, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("admin self-delete: expected 400, got %d", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/admin/stats", admin.AccessToken, nil)
	stats := decode[struct {
		Users    int64 `json:"total_users"`
		Bookings int64 `json:"total_bookings"`
	}](t, w)
	if stats.Users != 3 || stats.Bookings != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestStreamWithoutHubIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	customer := s.signup(t, "streamer@example.com", "customer")
	w := s.do(t, http.MethodGet, "/api/notifications/stream?access_token="+customer.AccessToken, "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a hub, got %d", w.Code)
	}
}
