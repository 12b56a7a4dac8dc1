// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package messaging

import "strings"

// FormatAddress normalizes a phone number for the messaging network: digits
// only, a leading 0 replaced by the country code, and the country code
// prepended when missing.
func FormatAddress(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case strings.HasPrefix(digits, countryCode):
		return digits
	default:
		return countryCode + digits
	}
}
