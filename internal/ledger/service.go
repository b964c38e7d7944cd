package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orchardlane/backend/internal/models"
)

// ErrInsufficientBalance is returned when a debit would take the balance
// below zero. Callers are expected to have checked affordability already;
// this guard is enforced at the store regardless.
var ErrInsufficientBalance = errors.New("insufficient loyalty balance")

// UserStore is the minimal user repository interface for balance mutation.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	AddPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) (int, error)
	DeductPoints(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) (int, error)
}

// EntryStore is the minimal loyalty transaction interface for the ledger.
type EntryStore interface {
	InsertTx(ctx context.Context, tx pgx.Tx, t *models.LoyaltyTransaction) error
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*models.LoyaltyTransaction, error)
}

// Service mutates loyalty balances. Every mutation appends exactly one
// ledger entry inside the caller's transaction, so a user's balance and the
// sum of their entry deltas cannot diverge: both commit or neither does.
type Service interface {
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, entryType, description string) (*models.LoyaltyTransaction, error)
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, entryType, description string) (*models.LoyaltyTransaction, error)
	Note(ctx context.Context, tx pgx.Tx, userID uuid.UUID, entryType, description string) (*models.LoyaltyTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID) ([]*models.LoyaltyTransaction, error)
}

type service struct {
	users   UserStore
	entries EntryStore
}

func NewService(users UserStore, entries EntryStore) Service {
	return &service{users: users, entries: entries}
}

var _ Service = (*service)(nil)

// Credit adds points to the user's balance and records the entry.
func (s *service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, entryType, description string) (*models.LoyaltyTransaction, error) {
	if points < 0 {
		return nil, errors.New("credit points must not be negative")
	}
	newBalance, err := s.users.AddPoints(ctx, tx, userID, points)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, tx, userID, entryType, points, newBalance, description)
}

// Debit deducts points, failing with ErrInsufficientBalance if the balance
// does not cover them. The conditional UPDATE makes the check-and-deduct
// atomic against concurrent debits on the same row.
func (s *service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, entryType, description string) (*models.LoyaltyTransaction, error) {
	if points <= 0 {
		return nil, errors.New("debit points must be positive")
	}
	newBalance, err := s.users.DeductPoints(ctx, tx, userID, points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}
	return s.append(ctx, tx, userID, entryType, -points, newBalance, description)
}

// Note records a zero-delta entry (milestone awards do not move points).
// The balance row is still touched so concurrent awards for the same user
// serialize on it.
func (s *service) Note(ctx context.Context, tx pgx.Tx, userID uuid.UUID, entryType, description string) (*models.LoyaltyTransaction, error) {
	balance, err := s.users.AddPoints(ctx, tx, userID, 0)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, tx, userID, entryType, 0, balance, description)
}

func (s *service) append(ctx context.Context, tx pgx.Tx, userID uuid.UUID, entryType string, delta, balanceAfter int, description string) (*models.LoyaltyTransaction, error) {
	entry := &models.LoyaltyTransaction{
		ID:           uuid.New(),
		UserID:       userID,
		EntryType:    entryType,
		PointsDelta:  delta,
		BalanceAfter: balanceAfter,
		Description:  description,
	}
	if err := s.entries.InsertTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.LoyaltyPoints, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID) ([]*models.LoyaltyTransaction, error) {
	return s.entries.ListByUserID(ctx, userID)
}
