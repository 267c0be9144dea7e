// Package feed streams offer batches from the feed endpoint and folds them
// into the known offer set.
package feed

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"giftbuyer/internal/offers"
)

// MergeNew folds an incoming batch into the known offer set, keyed by offer
// id. Incoming records replace known ones; per-account locks are merged so
// that a non-empty incoming lock overrides the known one and an explicit
// null, empty string or 0 clears it. The earliest surviving lock is surfaced
// as "locked_until". The result is sorted by price, then id.
func MergeNew(prev, cur []offers.RawOffer) []offers.RawOffer {
	byID := make(map[int64]offers.RawOffer, len(prev))
	for _, item := range prev {
		if id := item.ID(); id > 0 {
			byID[id] = cloneOffer(item)
		}
	}

	for _, raw := range cur {
		id := raw.ID()
		if id <= 0 {
			continue
		}
		lockPayload := raw["locks"]
		incoming := normalizeLocks(lockPayload)
		inactive := inactiveLockIDs(lockPayload)

		payload := cloneOffer(raw)
		if existing, ok := byID[id]; ok {
			merged := normalizeLocks(existing["locks"])
			for accountID, text := range incoming {
				merged[accountID] = text
			}
			for accountID := range inactive {
				delete(merged, accountID)
			}
			if len(merged) > 0 {
				payload["locks"] = serializeLocks(merged)
				if min, ok := minLock(merged); ok {
					payload["locked_until"] = min
				} else {
					delete(payload, "locked_until")
				}
			} else {
				delete(payload, "locks")
				delete(payload, "locked_until")
			}
		} else if len(incoming) > 0 {
			payload["locks"] = serializeLocks(incoming)
			if min, ok := minLock(incoming); ok {
				payload["locked_until"] = min
			}
		} else {
			delete(payload, "locks")
		}
		byID[id] = payload
	}

	merged := make([]offers.RawOffer, 0, len(byID))
	for _, item := range byID {
		merged = append(merged, item)
	}
	sort.Slice(merged, func(i, j int) bool {
		if pi, pj := merged[i].Price(), merged[j].Price(); pi != pj {
			return pi < pj
		}
		return merged[i].ID() < merged[j].ID()
	})
	return merged
}

// Added returns the offers present in merged but not in prev, preserving
// merged order.
func Added(prev, merged []offers.RawOffer) []offers.RawOffer {
	known := make(map[int64]struct{}, len(prev))
	for _, item := range prev {
		if id := item.ID(); id > 0 {
			known[id] = struct{}{}
		}
	}
	var added []offers.RawOffer
	for _, item := range merged {
		id := item.ID()
		if id <= 0 {
			continue
		}
		if _, ok := known[id]; !ok {
			added = append(added, item)
		}
	}
	return added
}

// Hash fingerprints the purchase-relevant fields of an offer set. Two sets
// with the same hash need no re-run.
func Hash(items []offers.RawOffer) string {
	h := md5.New()
	for _, it := range items {
		fmt.Fprintf(h, "%d|%d|%t|%d|%v|%v|%v|%v|%v|",
			it.ID(), it.Price(), it.IsLimited(), it.AvailableAmount(),
			it["limited_per_user"], it["per_user_remains"], it["per_user_available"],
			it["require_premium"], it["locked_until"])
		locks := normalizeLocks(it["locks"])
		ids := make([]int64, 0, len(locks))
		for id := range locks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(h, "%d=%s;", id, locks[id])
		}
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil))
}

func cloneOffer(item offers.RawOffer) offers.RawOffer {
	out := make(offers.RawOffer, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// normalizeLocks extracts active locks as account id -> timestamp text.
// Numeric epoch values are rendered as RFC 3339 UTC; string values are kept
// verbatim after trimming.
func normalizeLocks(v any) map[int64]string {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[int64]string{}
	}
	locks := make(map[int64]string, len(raw))
	for key, value := range raw {
		accountID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		switch val := value.(type) {
		case string:
			if text := strings.TrimSpace(val); text != "" {
				locks[accountID] = text
			}
		default:
			if t, ok := offers.ParseLockValue(value); ok {
				locks[accountID] = offers.FormatUTC(t)
			}
		}
	}
	return locks
}

// inactiveLockIDs returns the account ids whose lock the batch explicitly
// clears: a null, empty-string or zero value.
func inactiveLockIDs(v any) map[int64]struct{} {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	inactive := make(map[int64]struct{})
	for key, value := range raw {
		accountID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		switch val := value.(type) {
		case nil:
			inactive[accountID] = struct{}{}
		case string:
			if val == "" {
				inactive[accountID] = struct{}{}
			}
		default:
			if n, ok := asEpoch(val); ok && n == 0 {
				inactive[accountID] = struct{}{}
			}
		}
	}
	return inactive
}

func asEpoch(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func serializeLocks(locks map[int64]string) map[string]any {
	out := make(map[string]any, len(locks))
	for accountID, text := range locks {
		out[strconv.FormatInt(accountID, 10)] = text
	}
	return out
}

// minLock returns the earliest parseable lock text. Unparseable texts are
// kept in the lock map but never surfaced as the aggregate.
func minLock(locks map[int64]string) (string, bool) {
	var (
		best     time.Time
		bestText string
		found    bool
	)
	for _, text := range locks {
		t, ok := offers.ParseLockValue(text)
		if !ok {
			continue
		}
		if !found || t.Before(best) {
			best = t
			bestText = text
			found = true
		}
	}
	return bestText, found
}
