package loyalty

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Redemption terms: points convert at 500 points = £5, in whole units of 500.
const (
	RedemptionUnit      = 500
	RedemptionUnitValue = 5
	VoucherValidityDays = 90
)

// Milestone is one configured threshold. Voucher values are configured per
// threshold, not derived from the points by any formula.
type Milestone struct {
	Points int             `json:"points"`
	Value  decimal.Decimal `json:"value"`
}

// Config is the milestone table plus accrual rate, supplied at startup and
// read-only for the life of the process.
type Config struct {
	Milestones     []Milestone
	PointsPerPound int
}

// DefaultConfig returns the production milestone table.
func DefaultConfig() Config {
	return Config{
		Milestones: []Milestone{
			{Points: 500, Value: decimal.NewFromInt(5)},
			{Points: 1000, Value: decimal.NewFromInt(10)},
			{Points: 1500, Value: decimal.RequireFromString("7.50")},
			{Points: 2000, Value: decimal.NewFromInt(10)},
			{Points: 2500, Value: decimal.RequireFromString("12.50")},
			{Points: 3000, Value: decimal.NewFromInt(15)},
			{Points: 4000, Value: decimal.NewFromInt(20)},
			{Points: 5000, Value: decimal.NewFromInt(25)},
		},
		PointsPerPound: 1,
	}
}

// Validate checks the table is non-empty, strictly ascending, with positive
// points and values, and normalizes ordering.
func (c *Config) Validate() error {
	if len(c.Milestones) == 0 {
		return errors.New("milestone table is empty")
	}
	if c.PointsPerPound <= 0 {
		return errors.New("points per pound must be positive")
	}
	sort.Slice(c.Milestones, func(i, j int) bool { return c.Milestones[i].Points < c.Milestones[j].Points })
	prev := 0
	for _, m := range c.Milestones {
		if m.Points <= prev {
			return errors.New("milestone thresholds must be strictly ascending and positive")
		}
		if !m.Value.IsPositive() {
			return errors.New("milestone reward values must be positive")
		}
		prev = m.Points
	}
	return nil
}

// VoucherValue converts a redeemed point amount to sterling. The caller has
// already validated granularity.
func VoucherValue(points int) decimal.Decimal {
	return decimal.NewFromInt(int64(points / RedemptionUnit * RedemptionUnitValue))
}

// VoucherValidity is the window applied to loyalty-minted vouchers.
func VoucherValidity(now time.Time) (from, until time.Time) {
	return now, now.AddDate(0, 0, VoucherValidityDays)
}
