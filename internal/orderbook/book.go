// Package orderbook maintains local per-symbol replicas of exchange order
// books, built from a REST snapshot plus a sequenced diff stream.
package orderbook

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andriipushkar/scalpbot/internal/exchange"
	"github.com/andriipushkar/scalpbot/internal/types"
)

// State is the synchronization state of a Book.
type State int

const (
	StateUninitialized State = iota
	StateBuffering
	StateSynced
)

func (s State) String() string {
	switch s {
	case StateBuffering:
		return "buffering"
	case StateSynced:
		return "synced"
	default:
		return "uninitialized"
	}
}

// DefaultBufferCapacity bounds the pre-sync diff buffer. Overflow forces a
// fresh snapshot instead of unbounded growth.
const DefaultBufferCapacity = 1000

// Book is the local order book for one symbol. Bids are kept sorted
// descending, asks ascending, so best bid/ask are O(1) reads.
//
// A Book is written only by its symbol's synchronizer; concurrent readers use
// the accessor methods.
type Book struct {
	symbol string

	mu           sync.RWMutex
	bids         []types.PriceLevel
	asks         []types.PriceLevel
	lastUpdateID int64
	state        State
	buffer       []exchange.DepthUpdate
	bufferCap    int
}

// NewBook creates an empty, unsynchronized book.
func NewBook(symbol string, bufferCap int) *Book {
	if bufferCap <= 0 {
		bufferCap = DefaultBufferCapacity
	}
	return &Book{
		symbol:    symbol,
		bufferCap: bufferCap,
	}
}

// Symbol returns the book's symbol.
func (b *Book) Symbol() string { return b.symbol }

// State returns the current synchronization state.
func (b *Book) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// LastUpdateID returns the last applied sequence id.
func (b *Book) LastUpdateID() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdateID
}

// ApplySnapshot initializes the book from a REST snapshot, then replays any
// diffs buffered while the snapshot was in flight. Buffered events that end
// at or before the snapshot id are stale and dropped; the rest are applied in
// arrival order. The first replayed event may straddle the snapshot id on
// some exchanges, so no continuity check is made during replay.
func (b *Book) ApplySnapshot(snap *exchange.DepthSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = sortedLevels(snap.Bids, bidBefore)
	b.asks = sortedLevels(snap.Asks, askBefore)
	b.lastUpdateID = snap.LastUpdateID

	for _, ev := range b.buffer {
		if ev.LastID <= b.lastUpdateID {
			continue
		}
		b.applyLevels(ev)
		b.lastUpdateID = ev.LastID
	}
	b.buffer = nil
	b.state = StateSynced
}

// ApplyDiff applies one depth stream event.
//
// While unsynchronized the event is buffered; ErrBufferOverflow is returned
// when the buffer bound is hit and the caller must trigger a fresh snapshot.
// Once synced, a stale event is dropped, a contiguous or straddling event is
// applied, and a gap returns ErrSequenceGap without mutating the book.
func (b *Book) ApplyDiff(ev exchange.DepthUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateSynced {
		if len(b.buffer) >= b.bufferCap {
			return types.ErrBufferOverflow
		}
		b.buffer = append(b.buffer, ev)
		b.state = StateBuffering
		return nil
	}

	if ev.LastID <= b.lastUpdateID {
		return nil // duplicate or already covered by the snapshot
	}
	if ev.FirstID > b.lastUpdateID+1 {
		return types.ErrSequenceGap
	}

	b.applyLevels(ev)
	b.lastUpdateID = ev.LastID
	return nil
}

// Reset returns the book to the uninitialized state, discarding all levels
// and buffered events.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = nil
	b.asks = nil
	b.buffer = nil
	b.lastUpdateID = 0
	b.state = StateUninitialized
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (types.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return types.PriceLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (types.PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return types.PriceLevel{}, false
	}
	return b.asks[0], true
}

// BidDepth returns up to n bid levels, best first. n <= 0 returns all.
func (b *Book) BidDepth(n int) []types.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyLevels(b.bids, n)
}

// AskDepth returns up to n ask levels, best first. n <= 0 returns all.
func (b *Book) AskDepth(n int) []types.PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyLevels(b.asks, n)
}

// applyLevels mutates both sides from a diff event. Caller holds b.mu.
func (b *Book) applyLevels(ev exchange.DepthUpdate) {
	for _, pl := range ev.Bids {
		b.bids = setLevel(b.bids, pl, bidBefore)
	}
	for _, pl := range ev.Asks {
		b.asks = setLevel(b.asks, pl, askBefore)
	}
}

// bidBefore orders bids descending by price.
func bidBefore(a, b decimal.Decimal) bool { return a.GreaterThan(b) }

// askBefore orders asks ascending by price.
func askBefore(a, b decimal.Decimal) bool { return a.LessThan(b) }

// setLevel inserts, replaces or removes one level, keeping ls sorted.
func setLevel(ls []types.PriceLevel, pl types.PriceLevel, before func(a, b decimal.Decimal) bool) []types.PriceLevel {
	i := sort.Search(len(ls), func(i int) bool {
		return !before(ls[i].Price, pl.Price)
	})
	found := i < len(ls) && ls[i].Price.Equal(pl.Price)

	if pl.Quantity.IsZero() {
		if found {
			ls = append(ls[:i], ls[i+1:]...)
		}
		return ls
	}
	if found {
		ls[i].Quantity = pl.Quantity
		return ls
	}
	ls = append(ls, types.PriceLevel{})
	copy(ls[i+1:], ls[i:])
	ls[i] = pl
	return ls
}

func sortedLevels(src []types.PriceLevel, before func(a, b decimal.Decimal) bool) []types.PriceLevel {
	ls := make([]types.PriceLevel, 0, len(src))
	for _, pl := range src {
		if pl.Quantity.IsZero() {
			continue
		}
		ls = append(ls, pl)
	}
	sort.Slice(ls, func(i, j int) bool {
		return before(ls[i].Price, ls[j].Price)
	})
	return ls
}

func copyLevels(ls []types.PriceLevel, n int) []types.PriceLevel {
	if n <= 0 || n > len(ls) {
		n = len(ls)
	}
	out := make([]types.PriceLevel, n)
	copy(out, ls[:n])
	return out
}
