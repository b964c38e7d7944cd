package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/orchardlane/backend/internal/middleware"
	"github.com/orchardlane/backend/internal/models"
)

// VoucherStore lists coupons owned by a user.
type VoucherStore interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Coupon, error)
}

// MilestoneStore lists a user's earned milestone rewards.
type MilestoneStore interface {
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.MilestoneReward, error)
}

// AuditStore exposes the ledger-sum check for the integrity endpoint.
type AuditStore interface {
	SumDeltasByUserID(ctx context.Context, userID uuid.UUID) (int, error)
}

// UserStore resolves users for the audit endpoint.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Handler serves the customer-facing account pages and the admin audit view.
type Handler struct {
	vouchers   VoucherStore
	milestones MilestoneStore
	audit      AuditStore
	users      UserStore
	log        *slog.Logger
}

func NewHandler(vouchers VoucherStore, milestones MilestoneStore, audit AuditStore, users UserStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{vouchers: vouchers, milestones: milestones, audit: audit, users: users, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetMe handles GET /api/v1/account/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             user.ID,
		"email":          user.Email,
		"name":           user.Name,
		"role":           user.Role,
		"loyalty_points": user.LoyaltyPoints,
		"created_at":     user.CreatedAt,
	})
}

// ListVouchers handles GET /api/v1/account/vouchers.
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	vouchers, err := h.vouchers.ListByUserID(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list vouchers failed", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if vouchers == nil {
		vouchers = []*models.Coupon{}
	}
	writeJSON(w, http.StatusOK, vouchers)
}

// ListMilestones handles GET /api/v1/account/milestones.
func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	rewards, err := h.milestones.ListByUserID(r.Context(), user.ID)
	if err != nil {
		h.log.Error("list milestones failed", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if rewards == nil {
		rewards = []*models.MilestoneReward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// AuditUser handles GET /api/v1/loyalty/audit/{user_id} (admin only).
// Compares the ledger delta sum against the stored balance; the two must
// match at all times.
func (h *Handler) AuditUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user_id"}`, http.StatusBadRequest)
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	sum, err := h.audit.SumDeltasByUserID(r.Context(), userID)
	if err != nil {
		h.log.Error("audit ledger sum failed", "user_id", userID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	consistent := sum == user.LoyaltyPoints
	if !consistent {
		h.log.Error("ledger drift detected", "user_id", userID, "ledger_sum", sum, "balance", user.LoyaltyPoints)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"balance":    user.LoyaltyPoints,
		"ledger_sum": sum,
		"consistent": consistent,
	})
}
