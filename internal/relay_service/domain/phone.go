package domain

import (
	"fmt"
	"strings"
)

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// nationalDigits returns the 10-digit national number of a NANP number
// given with or without the leading country code 1.
func nationalDigits(phone string) (string, error) {
	d := digitsOf(phone)
	switch {
	case len(d) == 11 && d[0] == '1':
		return d[1:], nil
	case len(d) == 10:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
}

// ToDirectoryFormat renders a carrier number (+15551234567) the way the
// driver directory stores it: (555) 123-4567.
func ToDirectoryFormat(carrierPhone string) (string, error) {
	trimmed := strings.TrimSpace(carrierPhone)
	if !strings.HasPrefix(trimmed, "+") && !isDigits(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, carrierPhone)
	}
	n, err := nationalDigits(trimmed)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s) %s-%s", n[0:3], n[3:6], n[6:10]), nil
}

// ToCarrierFormat turns a directory number ((555) 123-4567) into the
// carrier's E.164 form: +15551234567.
func ToCarrierFormat(directoryPhone string) (string, error) {
	n, err := nationalDigits(directoryPhone)
	if err != nil {
		return "", err
	}
	return "+1" + n, nil
}

func isDigits(s string) bool {
	return s != "" && digitsOf(s) == s
}
