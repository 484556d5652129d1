package recovery

import (
	"strings"

	"propmarket/profile"
)

// NormalizeName trims, lowercases and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizePhone keeps only the ASCII decimal digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for i := 0; i < len(phone); i++ {
		if c := phone[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Complete reports whether a stored profile can back a recovery at all.
func Complete(rec profile.Record) bool {
	return NormalizeName(rec.FullName) != "" && NormalizePhone(rec.Phone) != ""
}

// Matches compares a claimed name and phone against a stored profile. An
// incomplete profile never matches, including against empty claims.
func Matches(name, phone string, rec profile.Record) bool {
	if !Complete(rec) {
		return false
	}
	return NormalizeName(name) == NormalizeName(rec.FullName) &&
		NormalizePhone(phone) == NormalizePhone(rec.Phone)
}
