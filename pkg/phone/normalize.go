// Package phone normalizes phone numbers for comparison and labels number types.
package phone

import (
	"strings"

	"golang.org/x/text/width"
)

// DefaultComparableDigits is how many trailing digits two numbers must share to
// be considered the same party when their prefixes differ.
const DefaultComparableDigits = 9

// Zero code points of the non-ASCII decimal digit blocks we fold to ASCII.
// Full-width digits are handled by width folding before this table is consulted.
var digitZeros = []rune{
	0x0660, // Arabic-Indic
	0x06F0, // Extended Arabic-Indic
	0x0966, // Devanagari
	0x09E6, // Bengali
}

// Normalize strips formatting from a dialable number. Digits are kept (folded
// to ASCII), keypad letters are converted to their digit, a leading '+' is kept
// and everything else is dropped. "(555) 123-4567" becomes "5551234567".
func Normalize(number string) string {
	if number == "" {
		return ""
	}

	folded := width.Narrow.String(number)

	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range strings.TrimSpace(folded) {
		if d, ok := digitValue(r); ok {
			b.WriteByte(byte('0' + d))
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if d, ok := keypadDigit(r); ok {
			b.WriteByte(d)
		}
	}
	return b.String()
}

func digitValue(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}
	for _, zero := range digitZeros {
		if r >= zero && r <= zero+9 {
			return int(r - zero), true
		}
	}
	return 0, false
}

func keypadDigit(r rune) (byte, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		r -= 'a' - 'A'
	case r < 'A' || r > 'Z':
		return 0, false
	}
	switch {
	case r <= 'C':
		return '2', true
	case r <= 'F':
		return '3', true
	case r <= 'I':
		return '4', true
	case r <= 'L':
		return '5', true
	case r <= 'O':
		return '6', true
	case r <= 'S':
		return '7', true
	case r <= 'V':
		return '8', true
	default:
		return '9', true
	}
}

// Tail returns the last n characters of a normalized number, or false when the
// number is shorter than n.
func Tail(normalized string, n int) (string, bool) {
	if n <= 0 || len(normalized) < n {
		return "", false
	}
	return normalized[len(normalized)-n:], true
}

// TailMatch reports whether two already-normalized numbers share their last n
// digits. Numbers shorter than n never match.
func TailMatch(a, b string, n int) bool {
	ta, ok := Tail(a, n)
	if !ok {
		return false
	}
	tb, ok := Tail(b, n)
	return ok && ta == tb
}

// Same reports whether two raw numbers denote the same dialable string once
// formatting is removed. It is an exact comparison, not a tail comparison.
func Same(a, b string) bool {
	if a == b {
		return a != ""
	}
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
