package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSplitCompositeOrderID(t *testing.T) {
	tests := []struct {
		in         string
		wantSymbol string
		wantID     string
	}{
		{"BTCUSDT:12345", "BTCUSDT", "12345"},
		{"12345", "", "12345"},
		{"ETHUSDT:", "ETHUSDT", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		symbol, id := splitCompositeOrderID(tt.in)
		if symbol != tt.wantSymbol || id != tt.wantID {
			t.Errorf("splitCompositeOrderID(%q) = (%q, %q), want (%q, %q)", tt.in, symbol, id, tt.wantSymbol, tt.wantID)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	if !parseDecimal("1.50").Equal(mustDecimal("1.5")) {
		t.Error("parseDecimal не разобрал валидное число")
	}
	if !parseDecimal("").IsZero() {
		t.Error("пустая строка должна давать ноль")
	}
	if !parseDecimal("garbage").IsZero() {
		t.Error("мусор должен давать ноль")
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.kraken.com", "api.kraken.com"},
		{"http://127.0.0.1:8080", "127.0.0.1:8080"},
		{"api.binance.com", "api.binance.com"},
	}
	for _, tt := range tests {
		if got := hostOf(tt.in); got != tt.want {
			t.Errorf("hostOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
