package business

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// CountryPrefix is the Kenyan dialling prefix every canonical MSISDN
	// starts with.
	CountryPrefix = "254"

	msisdnLength = 12
)

// localOperatorDigit reports whether d can lead a local subscriber number.
// Mobile numbers are 7XXXXXXXX (classic) or 1XXXXXXXX (newer ranges).
func localOperatorDigit(d byte) bool {
	return d == '7' || d == '1'
}

func stripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhoneNumber canonicalizes a payer phone number to the
// 254XXXXXXXXX form the provider requires. Accepted inputs are
// 07XXXXXXXX / 01XXXXXXXX, the bare 9 digit subscriber number,
// the already prefixed 254 form and the same with a leading plus.
// Anything else is rejected naming the original input.
func NormalizePhoneNumber(raw string) (string, error) {
	digits := stripNonDigits(raw)

	switch {
	case len(digits) == msisdnLength-2 && digits[0] == '0' && localOperatorDigit(digits[1]):
		return CountryPrefix + digits[1:], nil
	case len(digits) == msisdnLength-3 && localOperatorDigit(digits[0]):
		return CountryPrefix + digits, nil
	case len(digits) == msisdnLength && strings.HasPrefix(digits, CountryPrefix) && localOperatorDigit(digits[3]):
		return digits, nil
	}
	return "", invalidPhoneError(raw)
}

// NormalizeAmount converts a requested amount to the whole currency units
// the provider protocol supports. Fractional input is truncated toward
// zero, then the result must satisfy 0 < amount <= ceiling.
func NormalizeAmount(amount decimal.Decimal, ceiling int64) (int64, error) {
	units := amount.Truncate(0).IntPart()
	if units <= 0 {
		return 0, invalidAmountError("amount must be a positive number of whole currency units")
	}
	if ceiling > 0 && units > ceiling {
		return 0, invalidAmountError("amount exceeds the per transaction ceiling")
	}
	return units, nil
}

// truncateField clips s to the provider's fixed field length limits.
// Reference and description fields are truncated, never rejected.
func truncateField(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
