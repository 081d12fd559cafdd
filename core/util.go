package core

import (
	"strings"
	"unicode"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Slugify lowers `s` and joins its letter and digit runs with "-".
// "Batch 2024: Laptops!" -> "batch-2024-laptops"
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func Int64Ptr(i int64) *int64 { return &i }

func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }
