package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/models"
)

type CouponRepo struct {
	pool *pgxpool.Pool
}

func NewCouponRepo(pool *pgxpool.Pool) *CouponRepo {
	return &CouponRepo{pool: pool}
}

const couponColumns = `id, code, user_id, discount_type, discount_value, minimum_amount, maximum_discount, usage_limit, used_count, is_active, valid_from, valid_until, created_at`

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.UserID, &c.DiscountType, &c.DiscountValue, &c.MinimumAmount,
		&c.MaximumDiscount, &c.UsageLimit, &c.UsedCount, &c.IsActive, &c.ValidFrom, &c.ValidUntil, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepo) Create(ctx context.Context, c *models.Coupon) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO coupons (id, code, user_id, discount_type, discount_value, minimum_amount, maximum_discount, usage_limit, used_count, is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, c.ID, c.Code, c.UserID, c.DiscountType, c.DiscountValue, c.MinimumAmount, c.MaximumDiscount,
		c.UsageLimit, c.UsedCount, c.IsActive, c.ValidFrom, c.ValidUntil).Scan(&c.CreatedAt)
}

// InsertTx inserts a coupon inside the given transaction. A unique violation
// on uq_coupons_code signals a minted-code collision.
func (r *CouponRepo) InsertTx(ctx context.Context, tx pgx.Tx, c *models.Coupon) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coupons (id, code, user_id, discount_type, discount_value, minimum_amount, maximum_discount, usage_limit, used_count, is_active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, c.ID, c.Code, c.UserID, c.DiscountType, c.DiscountValue, c.MinimumAmount, c.MaximumDiscount,
		c.UsageLimit, c.UsedCount, c.IsActive, c.ValidFrom, c.ValidUntil).Scan(&c.CreatedAt)
}

func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

func (r *CouponRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Coupon, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+couponColumns+` FROM coupons WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ConsumeTx increments used_count if the usage limit has not been reached.
// Returns pgx.ErrNoRows once the coupon is exhausted, which makes the
// increment safe under concurrent checkouts.
func (r *CouponRepo) ConsumeTx(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) (usedCount int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND used_count < usage_limit
		RETURNING used_count
	`, couponID).Scan(&usedCount)
	return usedCount, err
}

// InsertUsageTx appends a checkout usage record inside the given transaction.
func (r *CouponRepo) InsertUsageTx(ctx context.Context, tx pgx.Tx, u *models.CouponUsage) error {
	return tx.QueryRow(ctx, `
		INSERT INTO coupon_usages (id, coupon_id, user_id, order_reference, discount_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, u.ID, u.CouponID, u.UserID, u.OrderReference, u.DiscountAmount).Scan(&u.CreatedAt)
}

// UsageStats aggregates coupon_usages for a coupon.
func (r *CouponRepo) UsageStats(ctx context.Context, couponID uuid.UUID) (count int, totalDiscount decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(discount_amount), 0)
		FROM coupon_usages WHERE coupon_id = $1
	`, couponID).Scan(&count, &totalDiscount)
	return count, totalDiscount, err
}
