// Package dates decides whether raw CRM field values are timestamps and
// converts between epoch milliseconds and ISO-8601 strings.
package dates

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the canonical rendering of a timestamp: UTC, millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// MinEpoch is the lower bound a numeric value must exceed to be considered a date.
// It equals 2000-01-01T00:00:00Z counted in seconds, which keeps both epoch seconds
// and epoch milliseconds from this century above it while rejecting counters and IDs.
const MinEpoch = 946684800

// horizonYears is how far past "now" a value may lie and still be a date.
const horizonYears = 10

// Coercer classifies and converts date-like values. The zero value is not usable; call New.
type Coercer struct {
	now func() time.Time
}

// Option configures a Coercer.
type Option func(*Coercer)

// WithClock overrides the wall clock used for the sliding upper bound.
func WithClock(now func() time.Time) Option {
	return func(c *Coercer) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Coercer on the system clock.
func New(opts ...Option) *Coercer {
	c := &Coercer{now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsDate reports whether value is numeric, above MinEpoch, and below
// now + 10 years in epoch milliseconds. It never panics.
func (c *Coercer) IsDate(value any) bool {
	n, ok := Number(value)
	if !ok {
		return false
	}
	upper := c.now().AddDate(horizonYears, 0, 0).UnixMilli()
	return n > MinEpoch && n < float64(upper)
}

// Coerce renders date-like values as ISO strings and returns everything else unchanged.
func (c *Coercer) Coerce(value any) any {
	if !c.IsDate(value) {
		return value
	}
	n, _ := Number(value)
	return ToDate(int64(n))
}

// ToDate converts epoch milliseconds to an ISO-8601 string in UTC.
func ToDate(epochMillis int64) string {
	return time.UnixMilli(epochMillis).UTC().Format(ISOLayout)
}

// ToEpoch renders t as epoch milliseconds.
func ToEpoch(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseDate parses an ISO-8601 date-time (RFC 3339, optional fractional seconds)
// or a bare calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// Number parses value as a finite float64. Numeric strings are accepted;
// empty strings, booleans and nil are not.
func Number(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var std = New()

// IsDate reports whether value is date-like against the system clock.
func IsDate(value any) bool { return std.IsDate(value) }

// Coerce renders value as an ISO string when it is date-like.
func Coerce(value any) any { return std.Coerce(value) }
