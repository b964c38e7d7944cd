package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/orchardlane/backend/internal/ledger"
	"github.com/orchardlane/backend/internal/loyalty"
	"github.com/orchardlane/backend/internal/middleware"
	"github.com/orchardlane/backend/internal/models"
)

// LoyaltyService is the subset of the loyalty engine needed by the handler.
type LoyaltyService interface {
	CheckMilestones(ctx context.Context, userID uuid.UUID) (*loyalty.MilestoneCheckResult, error)
	RedeemPoints(ctx context.Context, userID uuid.UUID, points int) (*loyalty.RedemptionResult, error)
	Adjust(ctx context.Context, userID uuid.UUID, pointsDelta int, reason string) (*models.LoyaltyTransaction, error)
	Progress(currentPoints int) loyalty.ProgressInfo
}

// LedgerReader is the read side of the ledger needed by the handler.
type LedgerReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.LoyaltyTransaction, error)
}

// LoyaltyHandler serves /api/v1/loyalty endpoints.
type LoyaltyHandler struct {
	Svc    LoyaltyService
	Ledger LedgerReader
	Logger *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// CheckMilestones handles POST /api/v1/loyalty/check-milestones.
// Never fails the request because a single threshold failed; those degrade
// to entries in "failures".
func (h *LoyaltyHandler) CheckMilestones(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	res, err := h.Svc.CheckMilestones(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("check milestones", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type progressResponse struct {
	CurrentPoints      int `json:"current_points"`
	CurrentMilestone   int `json:"current_milestone"`
	NextMilestone      int `json:"next_milestone"`
	PointsToNext       int `json:"points_to_next"`
	ProgressPercentage int `json:"progress_percentage"`
}

// Progress handles GET /api/v1/loyalty/progress.
func (h *LoyaltyHandler) Progress(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.Ledger.Balance(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("read balance", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	p := h.Svc.Progress(balance)
	writeJSON(w, http.StatusOK, progressResponse{
		CurrentPoints:      balance,
		CurrentMilestone:   p.CurrentMilestone,
		NextMilestone:      p.NextMilestone,
		PointsToNext:       p.PointsToNext,
		ProgressPercentage: p.ProgressPercentage,
	})
}

type redeemRequest struct {
	Points int `json:"points"`
}

// Redeem handles POST /api/v1/loyalty/redeem.
func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Svc.RedeemPoints(r.Context(), user.ID, req.Points)
	if err != nil {
		switch {
		case errors.Is(err, loyalty.ErrInvalidRedemptionAmount):
			http.Error(w, `{"error":"points must be a positive multiple of 500"}`, http.StatusBadRequest)
		case errors.Is(err, loyalty.ErrInsufficientPoints):
			http.Error(w, `{"error":"not enough loyalty points"}`, http.StatusBadRequest)
		default:
			h.Logger.Error("redeem points", "user_id", user.ID, "points", req.Points, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History handles GET /api/v1/loyalty/history.
func (h *LoyaltyHandler) History(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	entries, err := h.Ledger.History(r.Context(), user.ID)
	if err != nil {
		h.Logger.Error("list loyalty history", "user_id", user.ID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.LoyaltyTransaction{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type adjustRequest struct {
	UserID      string `json:"user_id"`
	PointsDelta int    `json:"points_delta"`
	Reason      string `json:"reason"`
}

// Adjust handles POST /api/v1/loyalty/adjust (admin only, gated by middleware).
func (h *LoyaltyHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, `{"error":"invalid user_id"}`, http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, `{"error":"reason is required"}`, http.StatusBadRequest)
		return
	}
	entry, err := h.Svc.Adjust(r.Context(), userID, req.PointsDelta, req.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			http.Error(w, `{"error":"adjustment would take balance below zero"}`, http.StatusBadRequest)
			return
		}
		h.Logger.Error("adjust points", "user_id", userID, "delta", req.PointsDelta, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
