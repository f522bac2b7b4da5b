// Package economy owns a player's currency and inventory and applies the
// catch, repair and sell rules to them.
package economy

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"velum/vehicle"
)

// Rejections. State is unchanged whenever one of these is returned.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoRepairNeeded    = errors.New("hull already at full durability")
	ErrEmptyInventory    = errors.New("inventory is empty")
	ErrInvalidItem       = errors.New("invalid item id")
)

// Hull is the durability the ledger repairs.
type Hull interface {
	Durability() int
	Restore()
}

// Snapshot is a copy of the ledger for readers.
type Snapshot struct {
	Currency   int
	Inventory  map[string]int
	TotalItems int
}

type Ledger struct {
	mu        sync.Mutex
	currency  int
	inventory map[string]int
	prices    map[string]int

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// NewLedger seeds a ledger from persisted values. Negative currency and
// non-positive counts are dropped.
func NewLedger(currency int, inventory map[string]int, prices map[string]int) *Ledger {
	l := &Ledger{
		currency:  max(currency, 0),
		inventory: make(map[string]int, len(inventory)),
		prices:    prices,
		subs:      make(map[int]func(Snapshot)),
	}
	for id, n := range inventory {
		if id != "" && n > 0 {
			l.inventory[id] = n
		}
	}
	return l
}

// ApplyCatch adds one of rewardID to the inventory.
func (l *Ledger) ApplyCatch(rewardID string) error {
	if rewardID == "" {
		return ErrInvalidItem
	}
	l.mu.Lock()
	l.inventory[rewardID]++
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return nil
}

// Repair restores h to full durability for one coin per missing point.
func (l *Ledger) Repair(h Hull) (int, error) {
	l.mu.Lock()
	cost := vehicle.MaxDurability - h.Durability()
	if cost <= 0 {
		l.mu.Unlock()
		return 0, ErrNoRepairNeeded
	}
	if l.currency < cost {
		have := l.currency
		l.mu.Unlock()
		return cost, fmt.Errorf("repair costs %d, have %d: %w", cost, have, ErrInsufficientFunds)
	}
	l.currency -= cost
	h.Restore()
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return cost, nil
}

// SellAll converts the whole inventory to currency at the price table and
// empties it. Items without a price are discarded for nothing.
func (l *Ledger) SellAll() (int, error) {
	l.mu.Lock()
	if len(l.inventory) == 0 {
		l.mu.Unlock()
		return 0, ErrEmptyInventory
	}
	total := 0
	for id, n := range l.inventory {
		total += l.prices[id] * n
	}
	l.currency += total
	clear(l.inventory)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.publish(snap)
	return total, nil
}

func (l *Ledger) Currency() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currency
}

func (l *Ledger) Count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inventory[id]
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every mutation. The
// returned func unsubscribes.
func (l *Ledger) Subscribe(fn func(Snapshot)) func() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	return func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}
}

func (l *Ledger) snapshotLocked() Snapshot {
	total := 0
	for _, n := range l.inventory {
		total += n
	}
	return Snapshot{
		Currency:   l.currency,
		Inventory:  maps.Clone(l.inventory),
		TotalItems: total,
	}
}

func (l *Ledger) publish(s Snapshot) {
	l.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.subMu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
