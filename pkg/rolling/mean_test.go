package rolling

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMean_Basic(t *testing.T) {
	m := NewMean(3)

	if m.Full() {
		t.Error("Mean should not be full with no data")
	}

	m.Add(decimal.NewFromInt(10))
	m.Add(decimal.NewFromInt(20))
	m.Add(decimal.NewFromInt(30))

	if got, want := m.Value(), decimal.NewFromInt(20); !got.Equal(want) {
		t.Errorf("Value = %s, want %s", got, want)
	}
	if !m.Full() {
		t.Error("Mean should be full after 3 values")
	}
}

func TestMean_Eviction(t *testing.T) {
	m := NewMean(3)

	m.Add(decimal.NewFromInt(10))
	m.Add(decimal.NewFromInt(20))
	m.Add(decimal.NewFromInt(30))
	m.Add(decimal.NewFromInt(40))

	// Window now holds [20, 30, 40].
	if got, want := m.Value(), decimal.NewFromInt(30); !got.Equal(want) {
		t.Errorf("Value = %s, want %s", got, want)
	}
	if m.Count() != 3 {
		t.Errorf("Count = %d, want 3", m.Count())
	}
}

func TestMean_Partial(t *testing.T) {
	m := NewMean(5)

	m.Add(decimal.NewFromInt(10))
	m.Add(decimal.NewFromInt(30))

	// Partial windows report the mean of what they hold.
	if got, want := m.Value(), decimal.NewFromInt(20); !got.Equal(want) {
		t.Errorf("Value = %s, want %s", got, want)
	}
	if m.Full() {
		t.Error("Mean should not be full with 2 of 5 values")
	}
}

func TestMean_Empty(t *testing.T) {
	m := NewMean(3)
	if !m.Value().IsZero() {
		t.Errorf("Value = %s, want 0", m.Value())
	}
}

func TestMean_Reset(t *testing.T) {
	m := NewMean(3)

	m.Add(decimal.NewFromInt(10))
	m.Add(decimal.NewFromInt(20))
	m.Add(decimal.NewFromInt(30))
	m.Reset()

	if m.Full() {
		t.Error("Mean should not be full after reset")
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d, want 0", m.Count())
	}
	if !m.Value().IsZero() {
		t.Errorf("Value = %s, want 0", m.Value())
	}
}
