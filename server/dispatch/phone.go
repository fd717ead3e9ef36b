package dispatch

import (
	"strings"

	"sosguard/utils"
)

// NormalizePhone strips every non-digit character & prepends the default
// country code when the number looks like a local 10/11 digit one without
// it. Assumes a single home country - a known, intentional simplification.
func NormalizePhone(raw, countryCode string) string {
	digits := utils.DigitsOnly(raw)

	if (len(digits) == 10 || len(digits) == 11) && !strings.HasPrefix(digits, countryCode) {
		return countryCode + digits
	}

	return digits
}
