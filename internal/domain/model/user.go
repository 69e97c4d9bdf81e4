package model

import "strings"

// UserProfile holds the customer fields the payment gateway asks for.
type UserProfile struct {
	ID       string
	FullName string
	Email    string
	Phone    string
}

// MinPhoneDigits is the shortest phone number the gateway accepts.
const MinPhoneDigits = 11

// SanitizePhone strips everything but digits and falls back to placeholder
// when fewer than MinPhoneDigits remain.
func SanitizePhone(phone, placeholder string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < MinPhoneDigits {
		return placeholder
	}
	return b.String()
}
