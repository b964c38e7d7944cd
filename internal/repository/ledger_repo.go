package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchardlane/backend/internal/models"
)

// LedgerRepo persists loyalty_transactions. The table is append-only:
// entries are never updated or deleted.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// InsertTx appends a ledger entry inside the given transaction.
func (r *LedgerRepo) InsertTx(ctx context.Context, tx pgx.Tx, t *models.LoyaltyTransaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO loyalty_transactions (id, user_id, entry_type, points_delta, balance_after, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, t.ID, t.UserID, t.EntryType, t.PointsDelta, t.BalanceAfter, t.Description).Scan(&t.CreatedAt)
}

// ListByUserID returns a user's ledger entries, newest first.
func (r *LedgerRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.LoyaltyTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, entry_type, points_delta, balance_after, description, created_at
		FROM loyalty_transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.LoyaltyTransaction
	for rows.Next() {
		var t models.LoyaltyTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.EntryType, &t.PointsDelta, &t.BalanceAfter, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// SumDeltasByUserID returns the sum of points_delta for a user. Used by the
// audit check: the sum must equal users.loyalty_points at all times.
func (r *LedgerRepo) SumDeltasByUserID(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_delta), 0) FROM loyalty_transactions WHERE user_id = $1
	`, userID).Scan(&sum)
	return sum, err
}
