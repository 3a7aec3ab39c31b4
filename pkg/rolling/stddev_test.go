package rolling

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStdDev_Constant(t *testing.T) {
	s := NewStdDev(3)

	s.Add(decimal.NewFromInt(10))
	s.Add(decimal.NewFromInt(10))
	s.Add(decimal.NewFromInt(10))

	if !s.Value().IsZero() {
		t.Errorf("Value = %s, want 0 for constant series", s.Value())
	}
}

func TestStdDev_Known(t *testing.T) {
	s := NewStdDev(4)

	// [2, 4, 4, 6]: mean 4, variance 2, stddev sqrt(2).
	s.Add(decimal.NewFromInt(2))
	s.Add(decimal.NewFromInt(4))
	s.Add(decimal.NewFromInt(4))
	s.Add(decimal.NewFromInt(6))

	want := decimal.RequireFromString("1.41421356")
	diff := s.Value().Sub(want).Abs()
	if diff.GreaterThan(decimal.RequireFromString("0.0001")) {
		t.Errorf("Value = %s, want ~%s", s.Value(), want)
	}
	if got := s.Mean(); !got.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Mean = %s, want 4", got)
	}
}

func TestStdDev_Eviction(t *testing.T) {
	s := NewStdDev(3)

	s.Add(decimal.NewFromInt(100))
	s.Add(decimal.NewFromInt(5))
	s.Add(decimal.NewFromInt(5))
	s.Add(decimal.NewFromInt(5))

	// The outlier has left the window.
	if !s.Value().IsZero() {
		t.Errorf("Value = %s, want 0 after outlier eviction", s.Value())
	}
}

func TestStdDev_Reset(t *testing.T) {
	s := NewStdDev(2)

	s.Add(decimal.NewFromInt(1))
	s.Add(decimal.NewFromInt(9))
	s.Reset()

	if s.Full() {
		t.Error("StdDev should not be full after reset")
	}
	if !s.Value().IsZero() {
		t.Errorf("Value = %s, want 0 after reset", s.Value())
	}
}

func TestSqrt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"1", "1"},
		{"4", "2"},
		{"2", "1.41421356"},
		{"0.0001", "0.01"},
	}
	for _, tt := range tests {
		got := sqrt(decimal.RequireFromString(tt.in))
		want := decimal.RequireFromString(tt.want)
		if got.Sub(want).Abs().GreaterThan(decimal.RequireFromString("0.0001")) {
			t.Errorf("sqrt(%s) = %s, want ~%s", tt.in, got, tt.want)
		}
	}
}
