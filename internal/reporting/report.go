// Package reporting renders a finished run into human-readable message
// chunks for delivery by the notification port.
package reporting

import (
	"fmt"
	"sort"
	"strings"

	"giftbuyer/internal/offers"
	"giftbuyer/internal/stats"
)

// MessageLimit is the character budget of one delivered message chunk.
const MessageLimit = 3800

// maxRowsPerOffer bounds the detail rows printed under one offer line.
const maxRowsPerOffer = 5

// Build renders the report lines: a header with aggregate counts, one block
// per considered offer, the deferred section, then per-destination and
// per-account summaries. Within an offer block the sources are consulted in
// priority order: purchased, global skip, failure reasons, hard failures,
// plan skips, not-yet-available, no data.
func Build(snap stats.Snapshot, considered []offers.RawOffer) []string {
	var lines []string

	purchased := snap.PurchasedTotal()
	total := len(considered)
	lines = append(lines, "Autobuy report")
	lines = append(lines, fmt.Sprintf("New: %d | Purchased: %d | Skipped: %d", total, purchased, total-purchased))
	if len(snap.PlanSkips) > 0 {
		lines = append(lines, fmt.Sprintf("Planning skips: %d", len(snap.PlanSkips)))
	}
	lines = append(lines, "")

	lines = append(lines, "By offer:")
	idx := newIndex(snap)
	for _, raw := range considered {
		lines = append(lines, offerBlock(raw, idx)...)
	}

	if len(snap.Deferred) > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Deferred purchases: %d", len(snap.Deferred)))
		for _, d := range snap.Deferred {
			lines = append(lines, fmt.Sprintf("• %d acc=%d run_at=%s", d.OfferID, d.AccountID, d.RunAt))
		}
	}

	lines = append(lines, "")
	lines = append(lines, "By destination:")
	for _, id := range sortedKeys(snap.Destinations) {
		d := snap.Destinations[id]
		lines = append(lines, fmt.Sprintf("• %d: plan=%d ok=%d fail=%d reasons=%d",
			id, d.Planned, len(d.Purchased), len(d.Failed), len(d.Reasons)))
	}

	lines = append(lines, "")
	lines = append(lines, "By account:")
	for _, id := range sortedKeys(snap.Accounts) {
		a := snap.Accounts[id]
		lines = append(lines, fmt.Sprintf("• acc=%d: plan=%d spent=%d start=%d end=%d buys=%d",
			id, a.Planned, a.Spent, a.BalanceStart, a.BalanceEnd, a.Purchases))
	}

	if tail := idx.unpurchasedPlanSkips(); tail > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("Total planning skips: %d", tail))
	}
	return lines
}

// SplitChunks packs lines into chunks not exceeding limit characters,
// splitting only on line boundaries. A single line longer than the limit
// becomes its own chunk rather than being cut.
func SplitChunks(lines []string, limit int) []string {
	var chunks []string
	var buffer []string
	size := 0
	for _, line := range lines {
		cost := len(line) + 1
		if size+cost > limit && len(buffer) > 0 {
			chunks = append(chunks, strings.Join(buffer, "\n"))
			buffer = []string{line}
			size = cost
			continue
		}
		buffer = append(buffer, line)
		size += cost
	}
	if len(buffer) > 0 {
		chunks = append(chunks, strings.Join(buffer, "\n"))
	}
	return chunks
}

// index groups ledger rows by offer id for per-offer rendering.
type index struct {
	purchased   map[int64][]purchasedRow
	failures    map[int64][]failureRow
	reasons     map[int64][]failureRow
	globalSkips map[int64]stats.SkipRecord
	planSkips   map[int64][]stats.SkipRecord
}

type purchasedRow struct {
	destinationID int64
	record        stats.PurchaseRecord
}

type failureRow struct {
	destinationID int64
	record        stats.FailureRecord
}

func newIndex(snap stats.Snapshot) *index {
	idx := &index{
		purchased:   map[int64][]purchasedRow{},
		failures:    map[int64][]failureRow{},
		reasons:     map[int64][]failureRow{},
		globalSkips: map[int64]stats.SkipRecord{},
		planSkips:   map[int64][]stats.SkipRecord{},
	}
	for _, destID := range sortedKeys(snap.Destinations) {
		d := snap.Destinations[destID]
		for _, row := range d.Purchased {
			idx.purchased[row.OfferID] = append(idx.purchased[row.OfferID], purchasedRow{destID, row})
		}
		for _, row := range d.Failed {
			idx.failures[row.OfferID] = append(idx.failures[row.OfferID], failureRow{destID, row})
		}
		for _, row := range d.Reasons {
			idx.reasons[row.OfferID] = append(idx.reasons[row.OfferID], failureRow{destID, row})
		}
	}
	for _, row := range snap.GlobalSkips {
		if _, seen := idx.globalSkips[row.OfferID]; !seen {
			idx.globalSkips[row.OfferID] = row
		}
	}
	for _, row := range snap.PlanSkips {
		idx.planSkips[row.OfferID] = append(idx.planSkips[row.OfferID], row)
	}
	return idx
}

func (idx *index) unpurchasedPlanSkips() int {
	var n int
	for offerID, rows := range idx.planSkips {
		if _, ok := idx.purchased[offerID]; !ok {
			n += len(rows)
		}
	}
	return n
}

func offerBlock(raw offers.RawOffer, idx *index) []string {
	offerID := raw.ID()
	price := raw.Price()
	supplyStr := "∞"
	if supply, ok := raw.TotalAmount(); ok {
		supplyStr = fmt.Sprintf("%d", supply)
	}
	head := fmt.Sprintf("%d | %d★ | supply=%s", offerID, price, supplyStr)

	if rows, ok := idx.purchased[offerID]; ok {
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, fmt.Sprintf("• OK %s -> dest=%d acc=%d",
				head, row.destinationID, row.record.AccountID))
		}
		return lines
	}

	if skip, ok := idx.globalSkips[offerID]; ok {
		line := fmt.Sprintf("• SKIP %s -> %s", head, skip.Reason)
		if len(skip.Details) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(skip.Details, ", "))
		}
		return []string{line}
	}

	var lines []string
	printedHeader := false
	ensureHeader := func(marker string) {
		if !printedHeader {
			lines = append(lines, fmt.Sprintf("• %s %s", marker, head))
			printedHeader = true
		}
	}

	if rows, ok := idx.reasons[offerID]; ok {
		ensureHeader("FAIL")
		for _, row := range truncate(rows) {
			lines = append(lines, fmt.Sprintf("   - reason dest=%d: %s acc=%d bal=%s need=%s",
				row.destinationID, row.record.Reason, row.record.AccountID,
				optInt(row.record.Balance), optInt(row.record.Need)))
		}
	}
	if rows, ok := idx.failures[offerID]; ok {
		ensureHeader("FAIL")
		for _, row := range truncate(rows) {
			line := fmt.Sprintf("   - error dest=%d: %s acc=%d",
				row.destinationID, row.record.Reason, row.record.AccountID)
			if row.record.Code != "" {
				line += fmt.Sprintf(" (%s)", row.record.Code)
			}
			lines = append(lines, line)
		}
	}
	if rows, ok := idx.planSkips[offerID]; ok {
		ensureHeader("SKIP")
		limit := maxRowsPerOffer
		if len(rows) < limit {
			limit = len(rows)
		}
		for _, row := range rows[:limit] {
			line := fmt.Sprintf("   - plan: %s", row.Reason)
			if len(row.Details) > 0 {
				line += fmt.Sprintf(" (%s)", strings.Join(row.Details, "; "))
			}
			lines = append(lines, line)
		}
	}
	if !printedHeader && raw.IsLimited() && raw.AvailableAmount() <= 0 {
		lines = append(lines, fmt.Sprintf("• SKIP %s -> not_available (avail=0)", head))
		printedHeader = true
	}
	if !printedHeader {
		lines = append(lines, fmt.Sprintf("• FAIL %s (no data)", head))
	}
	return lines
}

func truncate(rows []failureRow) []failureRow {
	if len(rows) > maxRowsPerOffer {
		return rows[:maxRowsPerOffer]
	}
	return rows
}

func optInt(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
