package loyalty

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/models"
)

// codeAttempts bounds the regenerate-and-retry loop on code collisions.
const codeAttempts = 3

// Excludes 0/O/1/I/L so codes survive being read over the phone.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateVoucherCode mints a code from a millisecond timestamp plus a
// random suffix. Collision resistance is practical, not guaranteed; the
// unique constraint on coupons.code is the enforced guarantee.
func GenerateVoucherCode() (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		suffix[i] = codeAlphabet[n.Int64()]
	}
	return "OL-" + ts + "-" + string(suffix), nil
}

// CouponInserter is the minimal coupon repository interface for issuance.
type CouponInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, c *models.Coupon) error
}

// VoucherParams are the caller-supplied discount parameters.
type VoucherParams struct {
	UserID          uuid.UUID
	DiscountType    string
	DiscountValue   decimal.Decimal
	MinimumAmount   decimal.Decimal
	MaximumDiscount *decimal.Decimal
	UsageLimit      int
	ValidFrom       time.Time
	ValidUntil      time.Time
}

// VoucherIssuer creates coupons with freshly minted codes.
type VoucherIssuer struct {
	coupons CouponInserter
}

func NewVoucherIssuer(coupons CouponInserter) *VoucherIssuer {
	return &VoucherIssuer{coupons: coupons}
}

// Issue inserts a coupon inside the caller's transaction. Each attempt runs
// under a savepoint (tx.Begin on a pgx.Tx) so a code collision aborts only
// the attempt, not the enclosing transaction; a fresh code is generated and
// retried up to codeAttempts times before ErrDuplicateCode surfaces.
func (v *VoucherIssuer) Issue(ctx context.Context, tx pgx.Tx, p VoucherParams) (*models.Coupon, error) {
	var issued *models.Coupon
	err := retry.Do(
		func() error {
			code, err := GenerateVoucherCode()
			if err != nil {
				return err
			}
			c := &models.Coupon{
				ID:              uuid.New(),
				Code:            code,
				DiscountType:    p.DiscountType,
				DiscountValue:   p.DiscountValue,
				MinimumAmount:   p.MinimumAmount,
				MaximumDiscount: p.MaximumDiscount,
				UsageLimit:      p.UsageLimit,
				UsedCount:       0,
				IsActive:        true,
				ValidFrom:       p.ValidFrom,
				ValidUntil:      p.ValidUntil,
			}
			if p.UserID != uuid.Nil {
				c.UserID = &p.UserID
			}
			sp, err := tx.Begin(ctx)
			if err != nil {
				return err
			}
			if err := v.coupons.InsertTx(ctx, sp, c); err != nil {
				_ = sp.Rollback(ctx)
				if isUniqueViolation(err, "uq_coupons_code") {
					return ErrDuplicateCode
				}
				return err
			}
			if err := sp.Commit(ctx); err != nil {
				return err
			}
			issued = c
			return nil
		},
		retry.RetryIf(func(err error) bool {
			return err == ErrDuplicateCode
		}),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.Attempts(codeAttempts),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return issued, nil
}
