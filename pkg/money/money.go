package money

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FractionScale is the storage scale for rate fractions (decimal(18,6) columns).
const FractionScale = 6

const DateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// PercentToFraction converts an ad-valorem percentage to its stored fraction,
// e.g. 25 -> 0.250000, 0.3464 -> 0.003464.
func PercentToFraction(percent decimal.Decimal) decimal.Decimal {
	return percent.DivRound(hundred, FractionScale)
}

// PercentToFractionString renders the stored fraction at full storage scale.
func PercentToFractionString(percent decimal.Decimal) string {
	return PercentToFraction(percent).StringFixed(FractionScale)
}

// minorUnits maps ISO-4217 codes whose minor unit is not 2.
var minorUnits = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// MinorUnit returns the number of decimal places for a currency code.
func MinorUnit(currency string) int32 {
	if n, ok := minorUnits[currency]; ok {
		return n
	}
	return 2
}

// RoundMinorUnit rounds an amount to the currency's minor unit. Intermediate
// sums must stay unrounded; this is for final presentation only.
func RoundMinorUnit(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnit(currency))
}

// WindowContains reports whether asOf falls inside the half-open effective
// window [from, to). A nil to means the window is open-ended.
func WindowContains(from time.Time, to *time.Time, asOf time.Time) bool {
	if asOf.Before(from) {
		return false
	}
	if to != nil && !asOf.Before(*to) {
		return false
	}
	return true
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t.UTC(), nil
}

// ParseDatePtr parses an optional YYYY-MM-DD date; empty string yields nil.
func ParseDatePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Truncate strips the time-of-day component, keeping the UTC date.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
