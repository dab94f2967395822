// Package validation collects per-field form violations before anything is
// sent to the database.
package validation

import (
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

// Violations maps a field name to a violation code ("required", ...).
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Fields returns the violated field names, sorted.
func (v Violations) Fields() []string {
	out := make([]string, 0, len(v))
	for f := range v {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Err returns nil when v is empty, otherwise an *Error wrapping v.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error is returned when a form fails validation.
type Error struct {
	Violations Violations
}

func (e *Error) Error() string {
	return "validation failed: " + strings.Join(e.Violations.Fields(), ", ")
}

func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func NonNegativeFloat(field string, val float64, v Violations) {
	if val < 0 {
		v[field] = "must_not_be_negative"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// Email records "required" for a blank value and "invalid_email" for a
// value that is not a bare address.
func Email(field, value string, v Violations) {
	value = strings.TrimSpace(value)
	if value == "" {
		v[field] = "required"
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		v[field] = "invalid_email"
	}
}

func MinLength(field, value string, n int, v Violations) {
	if utf8.RuneCountInString(value) < n {
		v[field] = "too_short"
	}
}

// OneOf records "invalid_choice" when value is not among allowed.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}
