package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
)

// NormalizePhone strips formatting and a leading country code 1. The result
// is only meaningful when it has exactly ten digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

func validPhone(raw string) bool { return len(NormalizePhone(raw)) == 10 }

func validEmail(raw string) bool { return emailPattern.MatchString(strings.TrimSpace(raw)) }

func validSSN(raw string) bool { return ssnPattern.MatchString(strings.TrimSpace(raw)) }

// parseDate accepts calendar dates in YYYY-MM-DD form only.
func parseDate(raw string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// checks accumulates violations for one rule.
type checks struct {
	rule string
	res  Result
}

func newChecks(rule string) *checks { return &checks{rule: rule} }

func (c *checks) block(field, format string, args ...any) {
	c.res.Add(Violation{Rule: c.rule, Severity: SeverityBlock, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checks) warn(field, format string, args ...any) {
	c.res.Add(Violation{Rule: c.rule, Severity: SeverityWarn, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checks) phone(field, v string) {
	if v != "" && !validPhone(v) {
		c.block(field, "invalid phone format for %s: expected 10 digits, got %q", field, v)
	}
}

func (c *checks) email(field, v string) {
	if v != "" && !validEmail(v) {
		c.block(field, "invalid email format for %s: %q", field, v)
	}
}

func (c *checks) ssn(field, v string) {
	if v != "" && !validSSN(v) {
		c.block(field, "invalid SSN format for %s: expected DDD-DD-DDDD", field)
	}
}

func (c *checks) date(field, v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, ok := parseDate(v)
	if !ok {
		c.block(field, "invalid date for %s: expected YYYY-MM-DD, got %q", field, v)
	}
	return t, ok
}

// dateRange validates both ends and their order.
func (c *checks) dateRange(fromField, from, toField, to string) {
	start, okStart := c.date(fromField, from)
	end, okEnd := c.date(toField, to)
	if okStart && okEnd && end.Before(start) {
		c.block(toField, "%s %s is before %s %s", toField, to, fromField, from)
	}
}

func (c *checks) nonNegative(field string, v *float64) {
	if v != nil && *v < 0 {
		c.block(field, "%s must not be negative, got %g", field, *v)
	}
}

func (c *checks) result() (Result, error) { return c.res, nil }
