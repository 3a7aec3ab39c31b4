// Package rolling provides fixed-window rolling statistics over decimal
// series, used by strategies to smooth noisy order book observations.
package rolling

import "github.com/shopspring/decimal"

// Mean is a rolling arithmetic mean over the last N observations.
type Mean struct {
	size   int
	values []decimal.Decimal
	head   int
	count  int
	sum    decimal.Decimal
}

// NewMean creates a rolling mean over a window of size observations.
func NewMean(size int) *Mean {
	if size < 1 {
		size = 1
	}
	return &Mean{
		size:   size,
		values: make([]decimal.Decimal, size),
		sum:    decimal.Zero,
	}
}

// Add pushes an observation, evicting the oldest once the window is full.
func (m *Mean) Add(v decimal.Decimal) {
	if m.count == m.size {
		m.sum = m.sum.Sub(m.values[m.head])
	} else {
		m.count++
	}
	m.values[m.head] = v
	m.sum = m.sum.Add(v)
	m.head = (m.head + 1) % m.size
}

// Value returns the mean of the observations currently in the window, or
// zero when no observation has been added.
func (m *Mean) Value() decimal.Decimal {
	if m.count == 0 {
		return decimal.Zero
	}
	return m.sum.Div(decimal.NewFromInt(int64(m.count)))
}

// Full reports whether the window holds size observations.
func (m *Mean) Full() bool { return m.count == m.size }

// Count returns the number of observations currently in the window.
func (m *Mean) Count() int { return m.count }

// Reset discards all observations.
func (m *Mean) Reset() {
	m.head = 0
	m.count = 0
	m.sum = decimal.Zero
}
