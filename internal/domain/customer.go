package domain

import (
	"strings"
	"time"
)

// Customer tracks repeat visits, keyed by normalized phone.
type Customer struct {
	ID              string
	TenantID        string
	Name            string
	PhoneRaw        string
	PhoneNormalized string
	LastVehicle     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CustomerSearchResult adds visit history to a customer.
type CustomerSearchResult struct {
	Customer
	TotalVisits int
	LastVisit   *time.Time
}

// NormalizePhone strips everything but digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone renders a 10-digit phone as XXX-XXX-XXXX.
func FormatPhone(raw string) (string, error) {
	digits := NormalizePhone(raw)
	if len(digits) != 10 {
		return "", ErrInvalidPhone
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:], nil
}

// PhoneKey returns the 10-digit dedup key for a phone number.
func PhoneKey(raw string) (string, error) {
	formatted, err := FormatPhone(raw)
	if err != nil {
		return "", err
	}
	return NormalizePhone(formatted), nil
}
