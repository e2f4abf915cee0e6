package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits stored for every monetary value.
const AmountScale = 2

var (
	// MaxAmount is the largest value that fits numeric(12,2).
	MaxAmount = decimal.RequireFromString("9999999999.99")

	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountScale       = fmt.Errorf("amount must have at most %d fractional digits", AmountScale)
	ErrAmountTooLarge    = errors.New("amount exceeds maximum")
	ErrAmountFormat      = errors.New("amount is not a decimal number")
)

// ParseAmount parses a client supplied decimal string and validates it as a donation amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrAmountFormat
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountFormat, raw)
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount enforces amount > 0, two fractional digits and the column bound.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrAmountNotPositive
	}
	if !d.Equal(d.Round(AmountScale)) {
		return ErrAmountScale
	}
	if d.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// ValidateGoal accepts zero (open-ended campaigns) but never a negative goal.
func ValidateGoal(d decimal.Decimal) error {
	if d.IsNegative() {
		return errors.New("goal amount must not be negative")
	}
	if !d.Equal(d.Round(AmountScale)) {
		return ErrAmountScale
	}
	if d.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// FormatAmount renders d with exactly two fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// ProgressPercentage is raised/goal*100 rounded to two places, or zero when goal is zero.
func ProgressPercentage(raised, goal decimal.Decimal) decimal.Decimal {
	if !goal.IsPositive() {
		return decimal.Zero
	}
	return raised.Div(goal).Mul(decimal.NewFromInt(100)).Round(AmountScale)
}
