package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatMajor renders a minor-unit amount as a two-decimal major string,
// the form card networks put on the wire ("2500" -> "25.00").
func FormatMajor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseMajor converts a decimal major-unit string back to minor units.
// At most two fraction digits are accepted.
func ParseMajor(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrInvalidPayload
	}

	negative := false
	if strings.HasPrefix(value, "-") {
		negative = true
		value = value[1:]
	}

	whole, frac, _ := strings.Cut(value, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidPayload
	}

	var cents int64
	switch len(frac) {
	case 0:
	case 1:
		cents, err = strconv.ParseInt(frac, 10, 64)
		cents *= 10
	case 2:
		cents, err = strconv.ParseInt(frac, 10, 64)
	default:
		return 0, ErrInvalidPayload
	}
	if err != nil {
		return 0, ErrInvalidPayload
	}

	minor := units*100 + cents
	if negative {
		minor = -minor
	}
	return minor, nil
}
