package loyalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orchardlane/backend/internal/ledger"
	"github.com/orchardlane/backend/internal/models"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserLocker locks the balance row so concurrent redemptions for the same
// user cannot both pass the affordability check against a stale balance.
type UserLocker interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
}

// MilestoneStore is the minimal milestone reward repository interface.
type MilestoneStore interface {
	Exists(ctx context.Context, userID uuid.UUID, milestonePoints int) (bool, error)
	InsertTx(ctx context.Context, tx pgx.Tx, m *models.MilestoneReward) error
}

// Service is the milestone and redemption engine. Both paths route through
// the same protocol: inside one transaction, adjust-or-check the balance via
// the ledger, then issue the voucher.
type Service struct {
	pool       TxBeginner
	users      UserLocker
	ledger     ledger.Service
	milestones MilestoneStore
	issuer     *VoucherIssuer
	cfg        Config
	log        *slog.Logger
}

func NewService(pool TxBeginner, users UserLocker, ledgerSvc ledger.Service, milestones MilestoneStore, issuer *VoucherIssuer, cfg Config, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		pool:       pool,
		users:      users,
		ledger:     ledgerSvc,
		milestones: milestones,
		issuer:     issuer,
		cfg:        cfg,
		log:        log,
	}
}

type AwardedMilestone struct {
	Points      int             `json:"points"`
	VoucherCode string          `json:"voucher_code"`
	RewardValue decimal.Decimal `json:"reward_value"`
}

type MilestoneFailure struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

type MilestoneCheckResult struct {
	NewMilestones         []AwardedMilestone `json:"new_milestones"`
	TotalRewardsGenerated int                `json:"total_rewards_generated"`
	Failures              []MilestoneFailure `json:"failures,omitempty"`
}

// CheckMilestones issues vouchers for every achieved threshold not yet
// rewarded, in ascending order. A threshold that fails is reported in the
// result and does not stop the rest of the sweep.
func (s *Service) CheckMilestones(ctx context.Context, userID uuid.UUID) (*MilestoneCheckResult, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &MilestoneCheckResult{NewMilestones: []AwardedMilestone{}}
	for _, m := range s.cfg.Milestones {
		if m.Points > balance {
			break
		}
		reward, err := s.awardMilestone(ctx, userID, m)
		if errors.Is(err, ErrAlreadyRewarded) {
			continue
		}
		if err != nil {
			s.log.Error("milestone award failed", "user_id", userID, "milestone_points", m.Points, "error", err)
			res.Failures = append(res.Failures, MilestoneFailure{Points: m.Points, Reason: err.Error()})
			continue
		}
		res.NewMilestones = append(res.NewMilestones, AwardedMilestone{
			Points:      m.Points,
			VoucherCode: reward.VoucherCode,
			RewardValue: m.Value,
		})
	}
	res.TotalRewardsGenerated = len(res.NewMilestones)
	return res, nil
}

// awardMilestone creates the voucher, the reward row, and the zero-delta
// ledger entry in one transaction. The Exists read is only the fast path:
// under concurrency the unique constraint on (user_id, milestone_points)
// decides, and a violation rolls the whole unit back, voucher included.
func (s *Service) awardMilestone(ctx context.Context, userID uuid.UUID, m Milestone) (*models.MilestoneReward, error) {
	rewarded, err := s.milestones.Exists(ctx, userID, m.Points)
	if err != nil {
		return nil, err
	}
	if rewarded {
		return nil, ErrAlreadyRewarded
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	from, until := VoucherValidity(time.Now())
	coupon, err := s.issuer.Issue(ctx, tx, VoucherParams{
		UserID:        userID,
		DiscountType:  models.DiscountFixedAmount,
		DiscountValue: m.Value,
		UsageLimit:    1,
		ValidFrom:     from,
		ValidUntil:    until,
	})
	if err != nil {
		return nil, err
	}

	reward := &models.MilestoneReward{
		ID:              uuid.New(),
		UserID:          userID,
		MilestonePoints: m.Points,
		RewardType:      models.RewardTypeVoucher,
		RewardValue:     m.Value,
		VoucherCode:     coupon.Code,
	}
	if err := s.milestones.InsertTx(ctx, tx, reward); err != nil {
		if isUniqueViolation(err, "uq_milestone_rewards_user_points") {
			return nil, ErrAlreadyRewarded
		}
		return nil, err
	}

	desc := fmt.Sprintf("Reached %d point milestone: £%s voucher %s", m.Points, m.Value.StringFixed(2), coupon.Code)
	if _, err := s.ledger.Note(ctx, tx, userID, models.EntryMilestoneAward, desc); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reward, nil
}

type RedemptionResult struct {
	VoucherCode  string          `json:"voucher_code"`
	VoucherValue decimal.Decimal `json:"voucher_value"`
	ValidUntil   time.Time       `json:"valid_until"`
	NewBalance   int             `json:"new_balance"`
}

// RedeemPoints converts points into a single-use voucher. Validation order:
// granularity first (ErrInvalidRedemptionAmount), then affordability against
// the freshly locked balance (ErrInsufficientPoints). The debit, the
// REDEEMED ledger entry, and the voucher commit together or not at all.
func (s *Service) RedeemPoints(ctx context.Context, userID uuid.UUID, points int) (*RedemptionResult, error) {
	if points < RedemptionUnit || points%RedemptionUnit != 0 {
		return nil, ErrInvalidRedemptionAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := s.users.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if u.LoyaltyPoints < points {
		return nil, ErrInsufficientPoints
	}

	value := VoucherValue(points)
	from, until := VoucherValidity(time.Now())
	coupon, err := s.issuer.Issue(ctx, tx, VoucherParams{
		UserID:        userID,
		DiscountType:  models.DiscountFixedAmount,
		DiscountValue: value,
		UsageLimit:    1,
		ValidFrom:     from,
		ValidUntil:    until,
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("Redeemed %d points for £%s voucher %s", points, value.StringFixed(2), coupon.Code)
	entry, err := s.ledger.Debit(ctx, tx, userID, points, models.EntryRedeemed, desc)
	if err != nil {
		// Unreachable given the locked balance check above; the store
		// enforces it anyway.
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &RedemptionResult{
		VoucherCode:  coupon.Code,
		VoucherValue: value,
		ValidUntil:   until,
		NewBalance:   entry.BalanceAfter,
	}, nil
}

// Adjust applies a signed manual correction as an ADJUSTED ledger entry.
// Negative adjustments cannot take the balance below zero.
func (s *Service) Adjust(ctx context.Context, userID uuid.UUID, pointsDelta int, reason string) (*models.LoyaltyTransaction, error) {
	if pointsDelta == 0 {
		return nil, errors.New("adjustment delta must be non-zero")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var entry *models.LoyaltyTransaction
	if pointsDelta > 0 {
		entry, err = s.ledger.Credit(ctx, tx, userID, pointsDelta, models.EntryAdjusted, reason)
	} else {
		entry, err = s.ledger.Debit(ctx, tx, userID, -pointsDelta, models.EntryAdjusted, reason)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// Progress reports where currentPoints sits in the milestone table.
func (s *Service) Progress(currentPoints int) ProgressInfo {
	return s.cfg.Progress(currentPoints)
}
