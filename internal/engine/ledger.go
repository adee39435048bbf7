package engine

import (
	"farewatch/internal/model"
)

// DedupKey identifies a combination within one destination/provider/cycle
// scope. One-way combinations carry an empty Inbound.
type DedupKey struct {
	Outbound string
	Inbound  string
	TotalUSD float64
}

// KeyFor derives the dedup key for a combination.
func KeyFor(c model.Combination) DedupKey {
	key := DedupKey{
		Outbound: c.OutboundDate.Format(model.DateFormat),
		TotalUSD: c.TotalUSD,
	}
	if c.InboundDate != nil {
		key.Inbound = c.InboundDate.Format(model.DateFormat)
	}
	return key
}

// Ledger suppresses duplicate combinations within one polling cycle.
// Overlapping month pages can make the matcher produce the same
// combination more than once; the ledger guarantees at most one
// store/notify per key. It holds no cross-cycle state: a deal re-firing at
// the same price on a later run is a signal, not a duplicate.
type Ledger struct {
	seen map[DedupKey]struct{}
}

// NewLedger creates an empty per-cycle ledger.
func NewLedger() *Ledger {
	return &Ledger{seen: make(map[DedupKey]struct{})}
}

// FirstSeen records the key and reports whether it was new.
func (l *Ledger) FirstSeen(key DedupKey) bool {
	if _, ok := l.seen[key]; ok {
		return false
	}
	l.seen[key] = struct{}{}
	return true
}
