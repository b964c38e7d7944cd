package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Loyalty transaction entry types. Entries are append-only: the sum of
// PointsDelta for a user always equals that user's current balance.
const (
	EntryEarned         = "EARNED"
	EntryRedeemed       = "REDEEMED"
	EntryMilestoneAward = "MILESTONE_AWARD"
	EntryAdjusted       = "ADJUSTED"
)

type LoyaltyTransaction struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	EntryType    string    `json:"entry_type"`
	PointsDelta  int       `json:"points_delta"`
	BalanceAfter int       `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// RewardTypeVoucher is the only reward type milestones currently issue.
const RewardTypeVoucher = "VOUCHER"

// MilestoneReward records that a user has been rewarded for crossing a
// configured threshold. (UserID, MilestonePoints) is unique; the row's
// existence is the sole proof the milestone was already rewarded.
type MilestoneReward struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	MilestonePoints int             `json:"milestone_points"`
	RewardType      string          `json:"reward_type"`
	RewardValue     decimal.Decimal `json:"reward_value"`
	VoucherCode     string          `json:"voucher_code"`
	CreatedAt       time.Time       `json:"created_at"`
}
