package models

import (
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// Timestamp accepts any ISO 8601 date-time on the wire, including the
// zone-less form some sensors emit. Zone-less values are read as UTC.
type Timestamp time.Time

func (t Timestamp) Time() time.Time { return time.Time(t) }

// MarshalText marshals the timestamp as RFC 3339.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(time.Time(t).Format(time.RFC3339Nano)), nil
}

// UnmarshalText unmarshals the timestamp from an ISO 8601 string.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := ParseTimestamp(string(b), time.UTC)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// ParseTimestamp parses an ISO 8601 date-time. A space is accepted in place
// of the "T" separator. Values without a zone designator are interpreted in
// loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	parsed, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, err
	}
	if !hasZone(s) && loc != nil {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
			parsed.Hour(), parsed.Minute(), parsed.Second(), parsed.Nanosecond(), loc)
	}
	return parsed, nil
}

func hasZone(s string) bool {
	if len(s) <= 10 {
		return false
	}
	clock := s[10:]
	return strings.HasSuffix(clock, "Z") || strings.HasSuffix(clock, "z") ||
		strings.ContainsAny(clock, "+-")
}
