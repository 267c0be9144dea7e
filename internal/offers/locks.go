package offers

import (
	"strings"
	"time"
)

// ParseLockValue interprets a single lock value: an ISO-8601 string (a
// trailing "Z" is equivalent to "+00:00", a missing zone means UTC) or an
// epoch-seconds number. The zero moments "", null and 0 carry no lock.
func ParseLockValue(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		return parseISO(val)
	case nil:
		return time.Time{}, false
	default:
		if ts, ok := asInt64(v); ok && ts > 0 {
			return time.Unix(ts, 0).UTC(), true
		}
		return time.Time{}, false
	}
}

// parseLocks extracts the per-account lock map from a raw "locks" payload.
// Keys that are not integral account ids and values that do not parse are
// dropped.
func parseLocks(v any) map[int64]time.Time {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	locks := make(map[int64]time.Time, len(raw))
	for key, value := range raw {
		accountID, ok := asInt64(key)
		if !ok || accountID == 0 {
			continue
		}
		if t, ok := ParseLockValue(value); ok {
			locks[accountID] = t
		}
	}
	if len(locks) == 0 {
		return nil
	}
	return locks
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	// Zone-less timestamps are taken as UTC.
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// FormatUTC renders a timestamp the way the feed does: RFC 3339 UTC with a
// trailing Z.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
