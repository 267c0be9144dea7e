package offers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftbuyer/internal/domain"
)

func limited(id, price, total int64) RawOffer {
	return RawOffer{
		"id":               id,
		"price":            price,
		"is_limited":       true,
		"total_amount":     total,
		"available_amount": total,
	}
}

func TestValidator_RejectsInvalidRecords(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		raw    RawOffer
		reason string
	}{
		{"missing id", RawOffer{"price": 10, "is_limited": true, "total_amount": 1}, domain.ReasonInvalidID},
		{"zero id", RawOffer{"id": 0, "price": 10, "is_limited": true, "total_amount": 1}, domain.ReasonInvalidID},
		{"negative price", RawOffer{"id": 1, "price": -5, "is_limited": true, "total_amount": 1}, domain.ReasonInvalidPrice},
		{"zero price", RawOffer{"id": 1, "price": 0, "is_limited": true, "total_amount": 1}, domain.ReasonInvalidPrice},
		{"unlimited", RawOffer{"id": 1, "price": 10, "is_limited": false, "total_amount": 5}, domain.ReasonUnlimited},
		{"limited without supply", RawOffer{"id": 1, "price": 10, "is_limited": true}, domain.ReasonNoSupplyForLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, rejected := v.ValidateAll([]RawOffer{tt.raw})
			assert.Empty(t, candidates)
			require.Len(t, rejected, 1)
			assert.Equal(t, tt.reason, rejected[0].Reason)
		})
	}
}

func TestValidator_AllowUnlimited(t *testing.T) {
	v := NewValidatorAllowUnlimited()

	candidates, rejected := v.ValidateAll([]RawOffer{
		{"id": 7, "price": 10, "is_limited": false},
	})
	require.Empty(t, rejected)
	require.Len(t, candidates, 1)
	assert.Equal(t, domain.UnboundedSupply, candidates[0].TotalSupply)
}

func TestValidator_CandidateInvariants(t *testing.T) {
	v := NewValidator()
	candidates, rejected := v.ValidateAll([]RawOffer{
		limited(10, 25, 100),
		limited(11, 1, 3),
		{"id": 12, "price": 50, "is_limited": true, "total_amount": -4},
	})
	require.Empty(t, rejected)
	for _, c := range candidates {
		assert.Positive(t, c.OfferID)
		assert.Positive(t, c.Price)
		assert.GreaterOrEqual(t, c.TotalSupply, int64(0))
		assert.GreaterOrEqual(t, c.AvailableAmount, int64(0))
	}
}

func TestValidator_PerAccountCap(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name string
		raw  RawOffer
		want int64
	}{
		{"not individually capped", limited(1, 10, 5), domain.UnboundedSupply},
		{
			"per_user_available preferred",
			RawOffer{"id": 1, "price": 10, "is_limited": true, "total_amount": 5,
				"limited_per_user": true, "per_user_available": 2, "per_user_remains": 9},
			2,
		},
		{
			"falls back to per_user_remains",
			RawOffer{"id": 1, "price": 10, "is_limited": true, "total_amount": 5,
				"limited_per_user": true, "per_user_remains": 3},
			3,
		},
		{
			"negative cap clamps to zero",
			RawOffer{"id": 1, "price": 10, "is_limited": true, "total_amount": 5,
				"limited_per_user": true, "per_user_remains": -1},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, rejected := v.ValidateAll([]RawOffer{tt.raw})
			require.Empty(t, rejected)
			require.Len(t, candidates, 1)
			assert.Equal(t, tt.want, candidates[0].PerAccountCap)
		})
	}
}

func TestValidator_PrioritySorting(t *testing.T) {
	v := NewValidator()
	raw := []RawOffer{
		limited(1, 10, 5000),
		limited(2, 10, 5),
		limited(3, 99, 5),
		limited(4, 99, 5),
	}

	candidates, _ := v.ValidateAll(raw)
	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.OfferID)
	}
	// Scarcest supply first; within equal supply higher price first; id breaks ties.
	assert.Equal(t, []int64{3, 4, 2, 1}, ids)
}

func TestValidator_SortingIsIdempotent(t *testing.T) {
	v := NewValidator()
	raw := []RawOffer{
		limited(5, 40, 100), limited(2, 10, 100), limited(9, 40, 2),
		limited(1, 1, 2), limited(7, 40, 100),
	}

	first, _ := v.ValidateAll(raw)
	second, _ := v.ValidateAll(raw)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].OfferID, second[i].OfferID)
	}
}

func TestValidator_ParsesLocks(t *testing.T) {
	v := NewValidator()
	raw := limited(99, 100, 1)
	raw["locks"] = map[string]any{
		"1":   "2026-09-01T10:00:00Z",
		"2":   "2026-09-01T10:00:00+00:00",
		"3":   float64(1756720800), // epoch seconds, as JSON numbers decode
		"bad": "2026-09-01T10:00:00Z",
		"4":   "",
		"5":   0,
	}

	candidates, rejected := v.ValidateAll([]RawOffer{raw})
	require.Empty(t, rejected)
	require.Len(t, candidates, 1)
	locks := candidates[0].Locks
	require.Len(t, locks, 3)

	want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, locks[1].Equal(want), "trailing Z")
	assert.True(t, locks[2].Equal(want), "+00:00 equivalent to Z")
	assert.Equal(t, time.UTC, locks[1].Location())
	assert.False(t, locks[3].IsZero())
}

func TestParseLockValue(t *testing.T) {
	zoneless, ok := ParseLockValue("2026-09-01T10:00:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), zoneless)

	_, ok = ParseLockValue("not-a-time")
	assert.False(t, ok)
	_, ok = ParseLockValue(nil)
	assert.False(t, ok)
	_, ok = ParseLockValue(0)
	assert.False(t, ok)
}
