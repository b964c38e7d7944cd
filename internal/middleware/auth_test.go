package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/orchardlane/backend/internal/models"
)

type stubTokens struct {
	userID uuid.UUID
	role   string
	err    error
}

func (s stubTokens) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	if s.err != nil {
		return uuid.Nil, "", s.err
	}
	return s.userID, s.role, nil
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s stubUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func okHandler(captured **models.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = UserFromCtx(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	userID := uuid.New()
	user := &models.User{ID: userID, Role: models.RoleCustomer}
	users := stubUsers{users: map[uuid.UUID]*models.User{userID: user}}

	t.Run("missing header", func(t *testing.T) {
		var got *models.User
		h := Auth(stubTokens{userID: userID}, users)(okHandler(&got))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		var got *models.User
		h := Auth(stubTokens{userID: userID}, users)(okHandler(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		var got *models.User
		h := Auth(stubTokens{err: errors.New("expired")}, users)(okHandler(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		var got *models.User
		h := Auth(stubTokens{userID: uuid.New()}, users)(okHandler(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("valid token resolves the user", func(t *testing.T) {
		var got *models.User
		h := Auth(stubTokens{userID: userID, role: models.RoleCustomer}, users)(okHandler(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer token") // scheme is case-insensitive
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rec.Code)
		}
		if got == nil || got.ID != userID {
			t.Errorf("context user: got %+v, want %s", got, userID)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("no user", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status: got %d, want 401", rec.Code)
		}
	})

	t.Run("customer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUser(req.Context(), &models.User{ID: uuid.New(), Role: models.RoleCustomer}))
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status: got %d, want 403", rec.Code)
		}
	})

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithUser(req.Context(), &models.User{ID: uuid.New(), Role: models.RoleAdmin}))
		rec := httptest.NewRecorder()
		RequireAdmin(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rec.Code)
		}
	})
}
