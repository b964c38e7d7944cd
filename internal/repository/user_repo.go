package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchardlane/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, loyalty_points)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.LoyaltyPoints).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, loyalty_points, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.LoyaltyPoints, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, loyalty_points, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.LoyaltyPoints, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDForUpdate locks the user row for update. Call within a transaction.
// The loyalty_points column on this row is the single point of contention
// for all balance mutations.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := tx.QueryRow(ctx, `
		SELECT id, email, password_hash, name, role, loyalty_points, created_at, updated_at
		FROM users WHERE id = $1 FOR UPDATE
	`, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.LoyaltyPoints, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AddPoints adds points to a user's balance and returns the new balance.
// A zero amount is valid and just reads back the current balance.
func (r *UserRepo) AddPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET loyalty_points = loyalty_points + $1, updated_at = now()
		WHERE id = $2
		RETURNING loyalty_points
	`, points, id).Scan(&newBalance)
	return newBalance, err
}

// DeductPoints atomically deducts points if the balance covers them.
// Returns pgx.ErrNoRows when the balance is insufficient.
func (r *UserRepo) DeductPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) (newBalance int, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE users SET loyalty_points = loyalty_points - $1, updated_at = now()
		WHERE id = $2 AND loyalty_points >= $1
		RETURNING loyalty_points
	`, points, id).Scan(&newBalance)
	return newBalance, err
}
