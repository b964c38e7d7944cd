package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/orders"
)

// OrderService is the accrual contract needed by the handler.
type OrderService interface {
	CompleteOrder(ctx context.Context, userID uuid.UUID, reference string, total decimal.Decimal) (*orders.AwardResult, error)
}

// OrdersHandler serves the order-completion hook called by checkout.
type OrdersHandler struct {
	Svc    OrderService
	Logger *slog.Logger
}

type completeOrderRequest struct {
	UserID    string          `json:"user_id"`
	Reference string          `json:"reference"`
	Total     decimal.Decimal `json:"total"`
}

// CompleteOrder handles POST /api/v1/orders/complete (admin/internal only).
func (h *OrdersHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, `{"error":"invalid user_id"}`, http.StatusBadRequest)
		return
	}
	if req.Reference == "" {
		http.Error(w, `{"error":"reference is required"}`, http.StatusBadRequest)
		return
	}
	res, err := h.Svc.CompleteOrder(r.Context(), userID, req.Reference, req.Total)
	if err != nil {
		h.Logger.Error("complete order", "user_id", userID, "reference", req.Reference, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
