package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchardlane/backend/internal/models"
)

type MilestoneRepo struct {
	pool *pgxpool.Pool
}

func NewMilestoneRepo(pool *pgxpool.Pool) *MilestoneRepo {
	return &MilestoneRepo{pool: pool}
}

// Exists reports whether the (user, threshold) pair has already been
// rewarded. This is the fast-path check only; the unique constraint on the
// pair is the arbiter under concurrency.
func (r *MilestoneRepo) Exists(ctx context.Context, userID uuid.UUID, milestonePoints int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM milestone_rewards WHERE user_id = $1 AND milestone_points = $2
		)
	`, userID, milestonePoints).Scan(&exists)
	return exists, err
}

// InsertTx inserts a milestone reward inside the given transaction. A unique
// violation on uq_milestone_rewards_user_points means a concurrent call
// already rewarded this milestone.
func (r *MilestoneRepo) InsertTx(ctx context.Context, tx pgx.Tx, m *models.MilestoneReward) error {
	return tx.QueryRow(ctx, `
		INSERT INTO milestone_rewards (id, user_id, milestone_points, reward_type, reward_value, voucher_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, m.ID, m.UserID, m.MilestonePoints, m.RewardType, m.RewardValue, m.VoucherCode).Scan(&m.CreatedAt)
}

func (r *MilestoneRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.MilestoneReward, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, milestone_points, reward_type, reward_value, voucher_code, created_at
		FROM milestone_rewards WHERE user_id = $1 ORDER BY milestone_points ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.MilestoneReward
	for rows.Next() {
		var m models.MilestoneReward
		if err := rows.Scan(&m.ID, &m.UserID, &m.MilestonePoints, &m.RewardType, &m.RewardValue, &m.VoucherCode, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
