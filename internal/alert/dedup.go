package alert

import (
	"sync"

	"github.com/kushalvora6290/moneycontrol-stock-scanner/internal/confirm"
)

type key struct {
	symbol string
	tier   confirm.Tier
}

// Deduplicator tracks which (symbol, tier) pairs have already produced
// an alert during this process lifetime. There is no expiry and no
// persistence: a restart forgets everything and may re-alert, which is
// accepted behavior. Safe for concurrent workers.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[key]bool
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[key]bool)}
}

// ShouldAlert returns true exactly once per (symbol, tier) pair and
// marks the pair as alerted. Every later call with the same pair
// returns false.
func (d *Deduplicator) ShouldAlert(symbol string, tier confirm.Tier) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := key{symbol: symbol, tier: tier}
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

// Size reports how many pairs have been alerted so far.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
