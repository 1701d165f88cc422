package masked

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPhoneNumber(t *testing.T) {
	cases := map[string]string{
		"5551234567":       "+15551234567",
		"(555) 123-4567":   "+15551234567",
		"15551234567":      "+15551234567",
		"+1 555 123 4567":  "+15551234567",
		"+44 20 7946 0958": "+442079460958",
	}
	for in, want := range cases {
		got, err := FormatPhoneNumber(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "12345", "25551234567", "not a number"} {
		_, err := FormatPhoneNumber(bad)
		assert.ErrorIs(t, err, ErrInvalidPhone, bad)
	}
}

func TestMaskPhoneNumber(t *testing.T) {
	assert.Equal(t, "********4567", MaskPhoneNumber("+15551234567"))
	assert.Equal(t, "****", MaskPhoneNumber("12"))
}
