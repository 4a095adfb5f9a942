package processor

import "strings"

// NormalizePhone canonicalizes a recipient number to bare international
// digits. An eight-digit number is treated as local format and prefixed with
// the default country code; anything longer is assumed to carry its own.
// The function is idempotent.
func NormalizePhone(phone, defaultCountryCode string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	normalized := digits.String()
	if len(normalized) == 8 {
		return defaultCountryCode + normalized
	}
	return normalized
}
