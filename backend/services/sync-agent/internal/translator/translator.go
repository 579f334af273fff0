// Package translator maps heterogeneous Remote Booking Service payloads onto canonical entities.
package translator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// localLayouts are tried, in the configured zone, when a timestamp carries no UTC suffix or offset.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var errNoTimestamp = errors.New("timestamp missing")

// Translator is pure apart from its clock (used only for missing created/updated stamps)
// and its id source (used only when a reservation carries no derivable identifier).
type Translator struct {
	loc   *time.Location
	now   func() time.Time
	newID func() string
}

// Option customizes a Translator.
type Option func(*Translator)

// WithClock overrides the clock used for non-critical timestamp defaults.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

// WithIDSource overrides the last-resort reservation identifier source.
func WithIDSource(newID func() string) Option {
	return func(t *Translator) { t.newID = newID }
}

// New returns a translator that interprets zone-less timestamps in loc (UTC when nil).
func New(loc *time.Location, opts ...Option) *Translator {
	if loc == nil {
		loc = time.UTC
	}
	t := &Translator{
		loc:   loc,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// parseTime parses a critical timestamp: strict RFC 3339 first, then local-zoned layouts.
// JSON numbers are epoch milliseconds. Results are normalized to UTC.
func (t *Translator) parseTime(raw json.RawMessage, ok bool) (time.Time, error) {
	if !ok {
		return time.Time{}, errNoTimestamp
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] != '"' {
		var millis float64
		if err := json.Unmarshal(raw, &millis); err != nil {
			return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
		}
		return time.UnixMilli(int64(millis)).UTC(), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	return t.ParseTimestamp(s)
}

// ParseTimestamp parses an ISO-8601 string with or without a UTC suffix.
func (t *Translator) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errNoTimestamp
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return parsed.UTC(), nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, s, t.loc); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// lenientTime is for created/updated stamps only: failures default to now.
func (t *Translator) lenientTime(raw json.RawMessage, ok bool) time.Time {
	parsed, err := t.parseTime(raw, ok)
	if err != nil {
		return t.now().UTC()
	}
	return parsed
}

// normalizeChargerType unifies "ac", "Ac", "DC", "dc_fast" and friends to AC or DC.
func normalizeChargerType(values ...string) string {
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if strings.Contains(v, "DC") {
			return "DC"
		}
		return "AC"
	}
	return ""
}
