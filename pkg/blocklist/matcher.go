// Package blocklist decides whether a caller's number is suppressed from the
// call feed. Entries are stored in Redis or in a YAML file.
package blocklist

import (
	"regexp"
	"strings"

	"github.com/otherjamesbrown/recents/pkg/phone"
)

// Matcher tests numbers against a fixed set of blocked entries.
//
// A plain entry blocks a number when their normalized forms are equal or
// share the last comparable digits. An entry containing '*' is a pattern in
// which '*' stands for any run of digits.
type Matcher struct {
	digits     int
	normalized map[string]bool
	comparable map[string]bool
	patterns   []*regexp.Regexp
	entries    []string
}

// NewMatcher builds a matcher. digits <= 0 uses phone.DefaultComparableDigits.
func NewMatcher(entries []string, digits int) *Matcher {
	if digits <= 0 {
		digits = phone.DefaultComparableDigits
	}
	m := &Matcher{
		digits:     digits,
		normalized: make(map[string]bool, len(entries)),
		comparable: make(map[string]bool, len(entries)),
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		m.entries = append(m.entries, e)
		if strings.Contains(e, "*") {
			if re := compilePattern(e); re != nil {
				m.patterns = append(m.patterns, re)
			}
			continue
		}
		n := phone.Normalize(e)
		if n == "" {
			continue
		}
		m.normalized[n] = true
		m.comparable[m.comparableForm(n)] = true
	}
	return m
}

// compilePattern turns "0900*" into an anchored regexp over normalized digits.
func compilePattern(entry string) *regexp.Regexp {
	parts := strings.Split(entry, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(phone.Normalize(p))
	}
	re, err := regexp.Compile("^" + strings.Join(parts, `[0-9]*`) + "$")
	if err != nil {
		return nil
	}
	return re
}

func (m *Matcher) comparableForm(normalized string) string {
	if tail, ok := phone.Tail(normalized, m.digits); ok {
		return tail
	}
	return normalized
}

// Blocked reports whether number matches any entry. Empty and unknown numbers
// never match.
func (m *Matcher) Blocked(number string) bool {
	n := phone.Normalize(number)
	if n == "" || number == "-1" {
		return false
	}
	if m.normalized[n] || m.comparable[m.comparableForm(n)] {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}

// Entries returns the entries the matcher was built from, trimmed.
func (m *Matcher) Entries() []string {
	return append([]string(nil), m.entries...)
}

// Len is the number of usable entries.
func (m *Matcher) Len() int {
	return len(m.entries)
}
