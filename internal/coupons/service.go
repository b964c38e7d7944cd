package coupons

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("coupon not found")
	ErrDisabled      = errors.New("coupon is disabled")
	ErrNotYetValid   = errors.New("coupon is not valid yet")
	ErrExpired       = errors.New("coupon has expired")
	ErrExhausted     = errors.New("coupon usage limit reached")
	ErrMinimumNotMet = errors.New("order amount below coupon minimum")
	ErrCodeTaken     = errors.New("coupon code already exists")
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CouponStore is the coupon repository interface used by the service.
type CouponStore interface {
	Create(ctx context.Context, c *models.Coupon) error
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	ConsumeTx(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) (int, error)
	InsertUsageTx(ctx context.Context, tx pgx.Tx, u *models.CouponUsage) error
	UsageStats(ctx context.Context, couponID uuid.UUID) (int, decimal.Decimal, error)
}

// Service owns the shared coupon lifecycle: validation and consumption at
// checkout, campaign creation, and usage statistics. Loyalty vouchers are
// ordinary coupons here; only their creation lives in the loyalty engine.
type Service struct {
	pool    TxBeginner
	coupons CouponStore
	log     *slog.Logger
}

func NewService(pool TxBeginner, coupons CouponStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{pool: pool, coupons: coupons, log: log}
}

// Quote is the result of validating a coupon against an order amount.
type Quote struct {
	Coupon   *models.Coupon  `json:"coupon"`
	Discount decimal.Decimal `json:"discount"`
}

// Validate checks a coupon against the derived lifecycle state and the order
// amount, and computes the discount it would grant.
func (s *Service) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (*Quote, error) {
	c, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch c.State(time.Now()) {
	case models.CouponDisabled:
		return nil, ErrDisabled
	case models.CouponScheduled:
		return nil, ErrNotYetValid
	case models.CouponExpired:
		return nil, ErrExpired
	case models.CouponExhausted:
		return nil, ErrExhausted
	}

	if orderAmount.LessThan(c.MinimumAmount) {
		return nil, ErrMinimumNotMet
	}

	return &Quote{Coupon: c, Discount: Discount(c, orderAmount)}, nil
}

// Discount computes the amount a coupon takes off an order. Percentage
// discounts are capped by MaximumDiscount when set; fixed discounts never
// exceed the order amount.
func Discount(c *models.Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		d = orderAmount.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
		if c.MaximumDiscount != nil && d.GreaterThan(*c.MaximumDiscount) {
			d = *c.MaximumDiscount
		}
	case models.DiscountFixedAmount:
		d = c.DiscountValue
		if d.GreaterThan(orderAmount) {
			d = orderAmount
		}
	}
	return d
}

// Apply consumes one use of the coupon and records the checkout usage, in
// one transaction. The conditional used_count increment is the guard against
// concurrent checkouts racing past the usage limit.
func (s *Service) Apply(ctx context.Context, code string, userID uuid.UUID, orderReference string, orderAmount decimal.Decimal) (*models.CouponUsage, error) {
	quote, err := s.Validate(ctx, code, orderAmount)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := s.coupons.ConsumeTx(ctx, tx, quote.Coupon.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExhausted
		}
		return nil, err
	}

	usage := &models.CouponUsage{
		ID:             uuid.New(),
		CouponID:       quote.Coupon.ID,
		UserID:         userID,
		OrderReference: orderReference,
		DiscountAmount: quote.Discount,
	}
	if err := s.coupons.InsertUsageTx(ctx, tx, usage); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return usage, nil
}

// CreateParams describe an admin-created campaign coupon.
type CreateParams struct {
	Code            string
	DiscountType    string
	DiscountValue   decimal.Decimal
	MinimumAmount   decimal.Decimal
	MaximumDiscount *decimal.Decimal
	UsageLimit      int
	ValidFrom       time.Time
	ValidUntil      time.Time
}

// Create inserts a campaign coupon with an admin-chosen code.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Coupon, error) {
	if p.Code == "" {
		return nil, errors.New("code is required")
	}
	if p.DiscountType != models.DiscountPercentage && p.DiscountType != models.DiscountFixedAmount {
		return nil, errors.New("invalid discount type")
	}
	if !p.DiscountValue.IsPositive() {
		return nil, errors.New("discount value must be positive")
	}
	if p.UsageLimit <= 0 {
		return nil, errors.New("usage limit must be positive")
	}
	if !p.ValidUntil.After(p.ValidFrom) {
		return nil, errors.New("valid_until must be after valid_from")
	}

	c := &models.Coupon{
		ID:              uuid.New(),
		Code:            p.Code,
		DiscountType:    p.DiscountType,
		DiscountValue:   p.DiscountValue,
		MinimumAmount:   p.MinimumAmount,
		MaximumDiscount: p.MaximumDiscount,
		UsageLimit:      p.UsageLimit,
		IsActive:        true,
		ValidFrom:       p.ValidFrom,
		ValidUntil:      p.ValidUntil,
	}
	if err := s.coupons.Create(ctx, c); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrCodeTaken
		}
		return nil, err
	}
	return c, nil
}

// Stats summarizes a coupon's lifecycle position and checkout usage.
type Stats struct {
	Code          string          `json:"code"`
	State         string          `json:"state"`
	UsageLimit    int             `json:"usage_limit"`
	UsedCount     int             `json:"used_count"`
	Remaining     int             `json:"remaining"`
	TimesUsed     int             `json:"times_used"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
}

func (s *Service) Stats(ctx context.Context, code string) (*Stats, error) {
	c, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	count, total, err := s.coupons.UsageStats(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	remaining := c.UsageLimit - c.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &Stats{
		Code:          c.Code,
		State:         c.State(time.Now()),
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		Remaining:     remaining,
		TimesUsed:     count,
		TotalDiscount: total,
	}, nil
}
