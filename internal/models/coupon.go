package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DiscountPercentage  = "PERCENTAGE"
	DiscountFixedAmount = "FIXED_AMOUNT"
)

// Coupon lifecycle states. Derived from the row's fields, never stored.
const (
	CouponScheduled = "scheduled"
	CouponActive    = "active"
	CouponExpired   = "expired"
	CouponExhausted = "exhausted"
	CouponDisabled  = "disabled"
)

type Coupon struct {
	ID              uuid.UUID        `json:"id"`
	Code            string           `json:"code"`
	UserID          *uuid.UUID       `json:"user_id,omitempty"`
	DiscountType    string           `json:"discount_type"`
	DiscountValue   decimal.Decimal  `json:"discount_value"`
	MinimumAmount   decimal.Decimal  `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount,omitempty"`
	UsageLimit      int              `json:"usage_limit"`
	UsedCount       int              `json:"used_count"`
	IsActive        bool             `json:"is_active"`
	ValidFrom       time.Time        `json:"valid_from"`
	ValidUntil      time.Time        `json:"valid_until"`
	CreatedAt       time.Time        `json:"created_at"`
}

// State derives the lifecycle state at the given instant. Exhaustion wins
// over expiry so a fully-used coupon reports exhausted even past its window.
func (c *Coupon) State(now time.Time) string {
	if !c.IsActive {
		return CouponDisabled
	}
	if c.UsedCount >= c.UsageLimit {
		return CouponExhausted
	}
	if now.Before(c.ValidFrom) {
		return CouponScheduled
	}
	if now.After(c.ValidUntil) {
		return CouponExpired
	}
	return CouponActive
}

// Usable reports whether the coupon can be applied at checkout right now.
func (c *Coupon) Usable(now time.Time) bool {
	return c.State(now) == CouponActive
}

type CouponUsage struct {
	ID             uuid.UUID       `json:"id"`
	CouponID       uuid.UUID       `json:"coupon_id"`
	UserID         uuid.UUID       `json:"user_id"`
	OrderReference string          `json:"order_reference"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
