package coupons

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/middleware"
	"github.com/orchardlane/backend/internal/models"
)

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type createRequest struct {
	Code            string           `json:"code"`
	DiscountType    string           `json:"discount_type"`
	DiscountValue   decimal.Decimal  `json:"discount_value"`
	MinimumAmount   decimal.Decimal  `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount"`
	UsageLimit      int              `json:"usage_limit"`
	ValidFrom       time.Time        `json:"valid_from"`
	ValidUntil      time.Time        `json:"valid_until"`
}

// Create handles POST /api/v1/coupons (admin only, gated by middleware).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	c, err := h.svc.Create(r.Context(), CreateParams{
		Code:            req.Code,
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		MinimumAmount:   req.MinimumAmount,
		MaximumDiscount: req.MaximumDiscount,
		UsageLimit:      req.UsageLimit,
		ValidFrom:       req.ValidFrom,
		ValidUntil:      req.ValidUntil,
	})
	if err != nil {
		if errors.Is(err, ErrCodeTaken) {
			http.Error(w, `{"error":"coupon code already exists"}`, http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type validateResponse struct {
	Valid    bool            `json:"valid"`
	Reason   string          `json:"reason,omitempty"`
	Code     string          `json:"code"`
	State    string          `json:"state,omitempty"`
	Discount decimal.Decimal `json:"discount,omitempty"`
}

// Validate handles GET /api/v1/coupons/{code}/validate?amount=25.00.
// Lifecycle rejections are a 200 with valid=false so checkout can surface
// the reason; only an unknown code is a 404.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		http.Error(w, `{"error":"invalid amount"}`, http.StatusBadRequest)
		return
	}

	quote, err := h.svc.Validate(r.Context(), code, amount)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"coupon not found"}`, http.StatusNotFound)
			return
		}
		if isLifecycleError(err) {
			writeJSON(w, http.StatusOK, validateResponse{Valid: false, Reason: err.Error(), Code: code})
			return
		}
		h.log.Error("validate coupon", "code", code, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:    true,
		Code:     quote.Coupon.Code,
		State:    models.CouponActive,
		Discount: quote.Discount,
	})
}

type applyRequest struct {
	Code           string          `json:"code"`
	OrderReference string          `json:"order_reference"`
	Amount         decimal.Decimal `json:"amount"`
}

// Apply handles POST /api/v1/coupons/apply: checkout consuming one use.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.OrderReference == "" {
		http.Error(w, `{"error":"code and order_reference are required"}`, http.StatusBadRequest)
		return
	}

	usage, err := h.svc.Apply(r.Context(), req.Code, user.ID, req.OrderReference, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			http.Error(w, `{"error":"coupon not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrMinimumNotMet):
			http.Error(w, `{"error":"order amount below coupon minimum"}`, http.StatusBadRequest)
		case isLifecycleError(err):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			h.log.Error("apply coupon", "code", req.Code, "user_id", user.ID, "error", err)
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// GetStats handles GET /api/v1/coupons/{code}/stats (admin only).
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	stats, err := h.svc.Stats(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, `{"error":"coupon not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("coupon stats", "code", code, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func isLifecycleError(err error) bool {
	return errors.Is(err, ErrDisabled) || errors.Is(err, ErrNotYetValid) ||
		errors.Is(err, ErrExpired) || errors.Is(err, ErrExhausted)
}
