package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/comandesja/api/internal/auth"
	"github.com/comandesja/api/internal/domain"
	"github.com/comandesja/api/internal/enum"
	"github.com/comandesja/api/internal/handler"
	"github.com/comandesja/api/internal/store"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	users map[uuid.UUID]domain.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{users: make(map[uuid.UUID]domain.User)}
}

func (m *mockAuthStore) CreateUser(_ context.Context, u domain.User) error {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrDuplicate
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (m *mockAuthStore) GetUser(_ context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

// --- Helpers ---

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func seedUser(store *mockAuthStore, email, password, role string) domain.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if role == enum.UserRoleTenant {
		u.TenantID = uuid.New()
		u.StoreSlug = "test-store"
		u.BusinessType = enum.BusinessTypeRestaurant
	}
	store.users[u.ID] = u
	return u
}

// --- Register tests ---

func TestRegister_Customer(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"email":    "anna@example.com",
		"password": "password123",
		"name":     "Anna",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Error("expected both tokens in response")
	}
	user, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", resp["user"])
	}
	if user["role"] != enum.UserRoleCustomer {
		t.Errorf("role: got %v, want CUSTOMER", user["role"])
	}
}

func TestRegister_Tenant(t *testing.T) {
	store := newMockAuthStore()
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"email":         "berga@example.com",
		"password":      "password123",
		"name":          "Jordi",
		"role":          enum.UserRoleTenant,
		"store_name":    "La Pizzeria de Berga",
		"store_slug":    "La Pizzeria De Berga",
		"business_type": enum.BusinessTypeRestaurant,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	user := resp["user"].(map[string]interface{})
	if user["store_slug"] != "la-pizzeria-de-berga" {
		t.Errorf("store_slug: got %v, want la-pizzeria-de-berga", user["store_slug"])
	}
	if user["name"] != "La Pizzeria de Berga" {
		t.Errorf("name: got %v, want store name", user["name"])
	}
	if user["tenant_id"] == uuid.Nil.String() {
		t.Error("expected a tenant_id to be assigned")
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"email":    "anna@example.com",
		"password": "short",
		"name":     "Anna",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRegister_TenantMissingStoreFields(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"email":    "berga@example.com",
		"password": "password123",
		"name":     "Jordi",
		"role":     enum.UserRoleTenant,
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRegister_InvalidBusinessType(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"email":         "berga@example.com",
		"password":      "password123",
		"name":          "Jordi",
		"role":          enum.UserRoleTenant,
		"store_name":    "La Pizzeria",
		"store_slug":    "la-pizzeria",
		"business_type": "SPACESHIP",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := newMockAuthStore()
	seedUser(store, "anna@example.com", "password123", enum.UserRoleCustomer)
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"email":    "anna@example.com",
		"password": "password123",
		"name":     "Anna",
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Login tests ---

func TestLogin_Valid(t *testing.T) {
	store := newMockAuthStore()
	seedUser(store, "anna@example.com", "password123", enum.UserRoleCustomer)
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "anna@example.com",
		"password": "password123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("expected access token")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	seedUser(store, "anna@example.com", "password123", enum.UserRoleCustomer)
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "anna@example.com",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "password123",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// --- Refresh tests ---

func TestRefresh_Valid(t *testing.T) {
	store := newMockAuthStore()
	user := seedUser(store, "anna@example.com", "password123", enum.UserRoleCustomer)
	router := setupAuthRouter(store)

	refreshToken, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("expected a fresh access token")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_UnknownUser(t *testing.T) {
	router := setupAuthRouter(newMockAuthStore())

	refreshToken, err := auth.GenerateRefreshToken(testSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
