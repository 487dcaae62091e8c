package models

import (
	"strings"
	"time"
)

// ImportedIDPrefix marks identities synthesized for spreadsheet rows
const ImportedIDPrefix = "imported-"

// MobileDigits is the length a mobile number must have after normalization
const MobileDigits = 10

// Customer represents a customer as returned by the CRM backend
type Customer struct {
	ID        string    `json:"_id"`
	FullName  string    `json:"fullname"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	CreatedAt time.Time `json:"createdAt"`
	Imported  bool      `json:"imported,omitempty"`
}

// CustomerInput is the payload sent to the backend on create and update
type CustomerInput struct {
	FullName string `json:"fullname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile" validate:"required"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field
func (in CustomerInput) Trimmed() CustomerInput {
	return CustomerInput{
		FullName: strings.TrimSpace(in.FullName),
		Email:    strings.TrimSpace(in.Email),
		Mobile:   strings.TrimSpace(in.Mobile),
	}
}

// Input returns the editable fields of the customer
func (c *Customer) Input() CustomerInput {
	return CustomerInput{
		FullName: c.FullName,
		Email:    c.Email,
		Mobile:   c.Mobile,
	}
}

// IsImported reports whether the record only exists in a view's import buffer
func (c *Customer) IsImported() bool {
	return c.Imported || strings.HasPrefix(c.ID, ImportedIDPrefix)
}

// NormalizeMobile strips every non-digit character and keeps the last ten
// digits. ok is false when fewer than ten digits remain.
func NormalizeMobile(raw string) (mobile string, ok bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) > MobileDigits {
		digits = digits[len(digits)-MobileDigits:]
	}

	return digits, len(digits) == MobileDigits
}
