package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// PhoneDigits is the length of a complete number including the country digit.
const PhoneDigits = 11

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeString trims whitespace and normalizes string input
func NormalizeString(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail normalizes email addresses (lowercase and trim)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RuneLen counts characters, not bytes, so Cyrillic names measure correctly.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// NormalizePhone renders any input as a progressive +7 (XXX) XXX-XX-XX mask.
// Partial input yields a partial mask; the result is stable under repeated
// application.
func NormalizePhone(phone string) string {
	digits := onlyDigits(phone)
	if digits == "" {
		return ""
	}

	if digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	if digits[0] != '7' {
		digits = "7" + digits
	}
	if len(digits) > PhoneDigits {
		digits = digits[:PhoneDigits]
	}

	var b strings.Builder
	b.WriteString("+7")
	if len(digits) > 1 {
		b.WriteString(" (")
		b.WriteString(digits[1:min(4, len(digits))])
	}
	if len(digits) > 4 {
		b.WriteString(") ")
		b.WriteString(digits[4:min(7, len(digits))])
	}
	if len(digits) > 7 {
		b.WriteString("-")
		b.WriteString(digits[7:min(9, len(digits))])
	}
	if len(digits) > 9 {
		b.WriteString("-")
		b.WriteString(digits[9:])
	}
	return b.String()
}

// CountPhoneDigits returns how many digits the normalized form of phone holds.
func CountPhoneDigits(phone string) int {
	return len(onlyDigits(NormalizePhone(phone)))
}

// IsValidPhone requires the country digit plus ten significant digits.
func IsValidPhone(phone string) bool {
	return CountPhoneDigits(phone) >= PhoneDigits
}

// IsValidEmail performs basic local@domain.tld validation
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
