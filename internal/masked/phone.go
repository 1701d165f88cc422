package masked

import (
	"errors"
	"strings"
	"unicode"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// FormatPhoneNumber normalizes a number to E.164. Ten digit numbers are
// assumed to be North American.
func FormatPhoneNumber(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case len(d) >= 8 && len(d) <= 15 && strings.HasPrefix(strings.TrimSpace(phone), "+"):
		return "+" + d, nil
	}
	return "", ErrInvalidPhone
}

// MaskPhoneNumber keeps only the last four digits, for logs.
func MaskPhoneNumber(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
