package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

// ============================================================
// Balance Tests
// ============================================================

func TestNewBalanceTotalInvariant(t *testing.T) {
	tests := []struct {
		name      string
		available string
		locked    string
		total     string
	}{
		{"both positive", "1.5", "0.5", "2"},
		{"zero locked", "10", "0", "10"},
		{"zero available", "0", "0.001", "0.001"},
		{"all zero", "0", "0", "0"},
		{"high precision", "0.00000001", "0.00000002", "0.00000003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available, _ := decimal.NewFromString(tt.available)
			locked, _ := decimal.NewFromString(tt.locked)
			want, _ := decimal.NewFromString(tt.total)

			b := NewBalance("BTC", available, locked)

			if !b.Total.Equal(want) {
				t.Errorf("Total = %s, want %s", b.Total, want)
			}
			if !b.Total.Equal(b.Available.Add(b.Locked)) {
				t.Error("invariant total = available + locked violated")
			}
		})
	}
}

func TestBalanceIsZero(t *testing.T) {
	zero := NewBalance("USDT", decimal.Zero, decimal.Zero)
	if !zero.IsZero() {
		t.Error("expected zero balance")
	}

	locked := NewBalance("USDT", decimal.Zero, decimal.NewFromInt(1))
	if locked.IsZero() {
		t.Error("locked funds must count as non-zero")
	}
}

// ============================================================
// Capabilities Tests
// ============================================================

func TestReadOnlyCapabilities(t *testing.T) {
	caps := ReadOnlyCapabilities()

	if !caps.Read {
		t.Error("read must be granted")
	}
	if caps.TradeSpot || caps.TradeDerivatives || caps.Withdraw || caps.Onchain {
		t.Errorf("only read may be granted, got %+v", caps)
	}
}
