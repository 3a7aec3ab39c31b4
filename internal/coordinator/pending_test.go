package coordinator

import (
	"sync"
	"testing"
)

func TestPendingSymbolSet_AcquireRelease(t *testing.T) {
	p := NewPendingSymbolSet()

	if !p.TryAcquire("BTCUSDT") {
		t.Fatal("first TryAcquire should succeed")
	}
	if p.TryAcquire("BTCUSDT") {
		t.Fatal("second TryAcquire should fail while held")
	}
	if !p.Contains("BTCUSDT") {
		t.Error("Contains should report held symbol")
	}
	if !p.TryAcquire("ETHUSDT") {
		t.Error("other symbols are independent")
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}

	p.Release("BTCUSDT")
	if p.Contains("BTCUSDT") {
		t.Error("Contains should be false after release")
	}
	if !p.TryAcquire("BTCUSDT") {
		t.Error("TryAcquire should succeed after release")
	}

	// Releasing a free symbol is a no-op.
	p.Release("XRPUSDT")
}

func TestPendingSymbolSet_ConcurrentAcquire(t *testing.T) {
	p := NewPendingSymbolSet()

	const workers = 32
	var wg sync.WaitGroup
	acquired := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.TryAcquire("BTCUSDT") {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	n := 0
	for range acquired {
		n++
	}
	if n != 1 {
		t.Errorf("%d goroutines acquired the symbol, want exactly 1", n)
	}
}

func TestEntryTable(t *testing.T) {
	tbl := newEntryTable()

	pe, ok := tbl.take("missing")
	if ok {
		t.Errorf("take on empty table = %+v", pe)
	}

	tbl.put(testPendingEntry("c-1", "BTCUSDT"))
	tbl.put(testPendingEntry("c-2", "ETHUSDT"))
	if tbl.len() != 2 {
		t.Errorf("len = %d, want 2", tbl.len())
	}

	taken, ok := tbl.take("c-1")
	if !ok || taken.Symbol != "BTCUSDT" {
		t.Errorf("take(c-1) = %+v %v", taken, ok)
	}
	if _, ok := tbl.take("c-1"); ok {
		t.Error("take should remove the entry")
	}

	tbl.remove("c-2")
	if tbl.len() != 0 {
		t.Errorf("len = %d, want 0", tbl.len())
	}
}
