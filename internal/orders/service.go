package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/ledger"
	"github.com/orchardlane/backend/internal/loyalty"
	"github.com/orchardlane/backend/internal/models"
)

// InsertMilestoneSweepTxFunc enqueues a milestone sweep within the given
// transaction. Provided by main using river.Client.InsertTx.
type InsertMilestoneSweepTxFunc func(ctx context.Context, tx pgx.Tx, args loyalty.MilestoneSweepArgs) error

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service converts completed orders into EARNED loyalty points. The credit
// and the milestone sweep job are inserted in the same transaction, so a
// sweep can never be enqueued for points that failed to commit.
type Service struct {
	pool           TxBeginner
	ledger         ledger.Service
	insertSweep    InsertMilestoneSweepTxFunc
	pointsPerPound int
	log            *slog.Logger
}

func NewService(pool TxBeginner, ledgerSvc ledger.Service, insertSweep InsertMilestoneSweepTxFunc, pointsPerPound int, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:           pool,
		ledger:         ledgerSvc,
		insertSweep:    insertSweep,
		pointsPerPound: pointsPerPound,
		log:            log,
	}
}

type AwardResult struct {
	PointsEarned int `json:"points_earned"`
	NewBalance   int `json:"new_balance"`
}

// CompleteOrder awards points for a paid order: one point-per-pound rate on
// the whole-pound part of the total.
func (s *Service) CompleteOrder(ctx context.Context, userID uuid.UUID, reference string, total decimal.Decimal) (*AwardResult, error) {
	if reference == "" {
		return nil, errors.New("order reference is required")
	}
	if total.IsNegative() {
		return nil, errors.New("order total must not be negative")
	}

	points := int(total.IntPart()) * s.pointsPerPound
	if points == 0 {
		balance, err := s.ledger.Balance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &AwardResult{PointsEarned: 0, NewBalance: balance}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	desc := fmt.Sprintf("Order %s: earned %d points", reference, points)
	entry, err := s.ledger.Credit(ctx, tx, userID, points, models.EntryEarned, desc)
	if err != nil {
		return nil, err
	}

	if err := s.insertSweep(ctx, tx, loyalty.MilestoneSweepArgs{UserID: userID}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("order points awarded", "user_id", userID, "order_reference", reference, "points", points)
	return &AwardResult{PointsEarned: points, NewBalance: entry.BalanceAfter}, nil
}
