package coordinator

import (
	"sync"

	"github.com/andriipushkar/scalpbot/internal/types"
)

// PendingSymbolSet is a keyed mutual-exclusion table guarding per-symbol
// entry and close operations. TryAcquire is an atomic check-and-insert, so
// two concurrent tasks can never both start an operation on one symbol.
type PendingSymbolSet struct {
	mu      sync.Mutex
	symbols map[string]struct{}
}

// NewPendingSymbolSet creates an empty set.
func NewPendingSymbolSet() *PendingSymbolSet {
	return &PendingSymbolSet{symbols: make(map[string]struct{})}
}

// TryAcquire marks the symbol as in flight. Returns false if it already was.
func (p *PendingSymbolSet) TryAcquire(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.symbols[symbol]; busy {
		return false
	}
	p.symbols[symbol] = struct{}{}
	return true
}

// Release clears the in-flight marker. Releasing a free symbol is a no-op.
func (p *PendingSymbolSet) Release(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.symbols, symbol)
}

// Contains reports whether the symbol is mid-flight.
func (p *PendingSymbolSet) Contains(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.symbols[symbol]
	return busy
}

// Len returns the number of in-flight symbols.
func (p *PendingSymbolSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.symbols)
}

// entryTable tracks submitted entry orders by client order id until the
// exchange reports a terminal status. At most one entry per symbol exists at
// a time; the PendingSymbolSet enforces that before put is reached.
type entryTable struct {
	mu   sync.Mutex
	byID map[string]types.PendingEntry
}

func newEntryTable() *entryTable {
	return &entryTable{byID: make(map[string]types.PendingEntry)}
}

func (t *entryTable) put(pe types.PendingEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[pe.ClientOrderID] = pe
}

// take removes and returns the entry, if present.
func (t *entryTable) take(clientOrderID string) (types.PendingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pe, ok := t.byID[clientOrderID]
	if ok {
		delete(t.byID, clientOrderID)
	}
	return pe, ok
}

func (t *entryTable) remove(clientOrderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, clientOrderID)
}

func (t *entryTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
