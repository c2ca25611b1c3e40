package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	billing "github.com/campushq/paycore/internal/billing/domain"
)

func TestCheckoutContextRoundTrip(t *testing.T) {
	in := CheckoutContext{TenantID: 42, PlanID: 7, Frequency: billing.FrequencyMonthly}

	encoded := in.Encode()
	assert.Equal(t, "t:42;p:7;f:monthly", encoded)

	out, err := DecodeCheckoutContext(encoded)
	assert.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeCheckoutContextRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"t:42",
		"t:42;p:7",
		"t:42;p:7;f:weekly",
		"t:0;p:7;f:monthly",
		"t:42;p:0;f:annual",
		"t:abc;p:7;f:monthly",
		"t:42;p:7;f:monthly;x:1",
		"garbage",
	}
	for _, raw := range cases {
		_, err := DecodeCheckoutContext(raw)
		assert.ErrorIs(t, err, ErrInvalidPayload, "input %q", raw)
	}
}

func TestFormatMajor(t *testing.T) {
	assert.Equal(t, "25.00", FormatMajor(2500))
	assert.Equal(t, "0.05", FormatMajor(5))
	assert.Equal(t, "0.00", FormatMajor(0))
	assert.Equal(t, "-3.50", FormatMajor(-350))
	assert.Equal(t, "1234.09", FormatMajor(123409))
}

func TestParseMajor(t *testing.T) {
	for raw, want := range map[string]int64{
		"25.00":  2500,
		"25":     2500,
		"25.5":   2550,
		"0.05":   5,
		"-3.50":  -350,
		".99":    99,
		" 10.00": 1000,
	} {
		got, err := ParseMajor(raw)
		assert.NoError(t, err, "input %q", raw)
		assert.Equal(t, want, got, "input %q", raw)
	}
}

func TestParseMajorRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "abc", "1.234", "1.2.3", "1,00"} {
		_, err := ParseMajor(raw)
		assert.ErrorIs(t, err, ErrInvalidPayload, "input %q", raw)
	}
}
