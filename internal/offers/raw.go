// Package offers is the single boundary converting loosely-typed offer
// records into typed candidates. No other package sees raw records except
// for report rendering.
package offers

import (
	"encoding/json"
	"strconv"
)

// RawOffer is an untyped offer record as received from the feed. Recognized
// fields: id, price, is_limited, total_amount, available_amount,
// limited_per_user, per_user_available, per_user_remains, require_premium,
// locks.
type RawOffer map[string]any

// ID returns the offer identifier, 0 when absent or malformed.
func (r RawOffer) ID() int64 {
	v, _ := asInt64(r["id"])
	return v
}

// Price returns the unit price, 0 when absent or malformed.
func (r RawOffer) Price() int64 {
	v, _ := asInt64(r["price"])
	return v
}

// IsLimited reports whether the offer is marked supply-limited.
func (r RawOffer) IsLimited() bool {
	b, _ := r["is_limited"].(bool)
	return b
}

// TotalAmount returns the declared total supply and whether it is present.
func (r RawOffer) TotalAmount() (int64, bool) {
	return asInt64(r["total_amount"])
}

// AvailableAmount returns the currently available amount, 0 when absent.
func (r RawOffer) AvailableAmount() int64 {
	v, _ := asInt64(r["available_amount"])
	return v
}

// asInt64 coerces the dynamic value shapes JSON decoding produces.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
