package types

import (
	"fmt"
	"regexp"
	"strings"
)

// NationalCode is a 10-digit national identity code. It is the cross-case
// identity key for a person; two suspect rows with the same code are the
// same individual.
type NationalCode string

var nationalCodeRegex = regexp.MustCompile(`^\d{10}$`)

// ParseNationalCode trims and validates a national code. An empty input
// yields the zero code without error, since the code is optional on most
// records.
func ParseNationalCode(s string) (NationalCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if !nationalCodeRegex.MatchString(s) {
		return "", fmt.Errorf("national code must be exactly 10 digits")
	}
	return NationalCode(s), nil
}

func (n NationalCode) String() string {
	return string(n)
}

// Masked keeps the last three digits visible.
func (n NationalCode) Masked() string {
	if len(n) < 10 {
		return "**********"
	}
	return "*******" + string(n)[7:]
}

func (n NationalCode) IsZero() bool {
	return n == ""
}
