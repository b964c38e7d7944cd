package loyalty

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrInvalidRedemptionAmount: not positive, not a multiple of the
	// redemption unit, or below the minimum.
	ErrInvalidRedemptionAmount = errors.New("points must be a positive multiple of 500")

	// ErrInsufficientPoints: the user's balance does not cover the request.
	ErrInsufficientPoints = errors.New("not enough loyalty points")

	// ErrDuplicateCode: a minted voucher code collided with an existing
	// coupon code. Recovered internally by regenerating; surfaced only when
	// retries exhaust.
	ErrDuplicateCode = errors.New("voucher code already exists")

	// ErrAlreadyRewarded: the (user, threshold) pair has a reward row. Not a
	// failure; milestone processing skips it silently.
	ErrAlreadyRewarded = errors.New("milestone already rewarded")
)

// isUniqueViolation reports whether err is a Postgres unique violation on
// the named constraint. An empty constraint matches any unique violation.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
