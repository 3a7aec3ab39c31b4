package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

// TestSide_String tests Side string conversion.
func TestSide_String(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{SideLong, "LONG"},
		{SideShort, "SHORT"},
		{SideFlat, "FLAT"},
		{Side(99), "FLAT"}, // Unknown defaults to FLAT
	}

	for _, tt := range tests {
		got := tt.side.String()
		if got != tt.want {
			t.Errorf("Side(%d).String() = %s, want %s", tt.side, got, tt.want)
		}
	}
}

// TestSide_Opposite tests direction flip.
func TestSide_Opposite(t *testing.T) {
	tests := []struct {
		side Side
		want Side
	}{
		{SideLong, SideShort},
		{SideShort, SideLong},
		{SideFlat, SideFlat},
	}

	for _, tt := range tests {
		got := tt.side.Opposite()
		if got != tt.want {
			t.Errorf("Side(%d).Opposite() = %d, want %d", tt.side, got, tt.want)
		}
	}
}

// TestSide_TextRoundTrip tests the text form used in persisted state files.
func TestSide_TextRoundTrip(t *testing.T) {
	for _, side := range []Side{SideFlat, SideLong, SideShort} {
		text, err := side.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", side, err)
		}
		var back Side
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", text, err)
		}
		if back != side {
			t.Errorf("round trip %v -> %s -> %v", side, text, back)
		}
	}

	var s Side
	if err := s.UnmarshalText([]byte("SIDEWAYS")); err == nil {
		t.Error("expected error for unknown side text")
	}
}

// TestPosition_IsProtected tests the bracket completeness check.
func TestPosition_IsProtected(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"both orders", Position{StopOrderID: "1", TakeProfitOrderID: "2"}, true},
		{"missing stop", Position{TakeProfitOrderID: "2"}, false},
		{"missing take profit", Position{StopOrderID: "1"}, false},
		{"naked", Position{}, false},
	}

	for _, tt := range tests {
		if got := tt.pos.IsProtected(); got != tt.want {
			t.Errorf("%s: IsProtected() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// TestDecimal_FloatPrecision tests 0.1 + 0.2 = 0.3.
func TestDecimal_FloatPrecision(t *testing.T) {
	a := decimal.RequireFromString("0.1")
	b := decimal.RequireFromString("0.2")
	expected := decimal.RequireFromString("0.3")

	result := a.Add(b)
	if !result.Equal(expected) {
		t.Errorf("0.1 + 0.2 = %s, want 0.3", result.String())
	}
}

// TestDecimal_Accumulated tests 1000 * $0.01 = $10.00.
func TestDecimal_Accumulated(t *testing.T) {
	amount := decimal.RequireFromString("0.01")
	count := 1000
	expected := decimal.RequireFromString("10.00")

	result := decimal.Zero
	for i := 0; i < count; i++ {
		result = result.Add(amount)
	}

	if !result.Equal(expected) {
		t.Errorf("1000 * $0.01 = %s, want $10.00", result.String())
	}
}

// TestDecimal_LargeValues tests large notional values survive multiplication.
func TestDecimal_LargeValues(t *testing.T) {
	largeValue := decimal.RequireFromString("250000.00")
	multiplier := decimal.RequireFromString("1.5")
	expected := decimal.RequireFromString("375000.00")

	result := largeValue.Mul(multiplier)
	if !result.Equal(expected) {
		t.Errorf("250000 * 1.5 = %s, want 375000", result.String())
	}

	veryLarge := decimal.RequireFromString("999999999999.99")
	if veryLarge.IsZero() {
		t.Error("large value should not be zero")
	}
}
