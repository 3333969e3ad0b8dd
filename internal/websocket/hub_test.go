package websocket

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradedesk/internal/models"
)

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
		allowAll: false,
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // empty origin allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	checker := &OriginChecker{
		allowAll: true,
	}

	origins := []string{
		"http://localhost:3000",
		"https://evil.com",
		"http://anything.example.org",
	}

	for _, origin := range origins {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHub_BroadcastDeliversToClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client

	// дождаться регистрации
	deadline := time.After(time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client was not registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	hub.BroadcastConnectionUpdate(&models.ConnectionRecord{
		ID:       "conn-1",
		Provider: models.ProviderKraken,
		Status:   models.ConnectionStatusActive,
	})

	select {
	case raw := <-client.send:
		var msg ConnectionUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != string(MessageTypeConnectionUpdate) {
			t.Errorf("Type = %q", msg.Type)
		}
		if msg.Connection.ID != "conn-1" {
			t.Errorf("Connection.ID = %q", msg.Connection.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the client")
	}

	hub.unregister <- client
}

// Зашифрованные ключи не должны попадать в broadcast
func TestConnectionUpdateOmitsCredentials(t *testing.T) {
	msg := ConnectionUpdateMessage{
		Type: string(MessageTypeConnectionUpdate),
		Connection: &models.ConnectionRecord{
			ID:        "conn-1",
			Provider:  models.ProviderKraken,
			APIKey:    "enc:v2:a2V5",
			APISecret: "enc:v2:c2VjcmV0",
			Status:    models.ConnectionStatusActive,
		},
	}

	raw, err := json.Marshal(&msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "enc:v2") {
		t.Errorf("ключи утекли в сообщение: %s", raw)
	}
}

func TestBalanceUpdateMessageShape(t *testing.T) {
	msg := BalanceUpdateMessage{
		Type:         string(MessageTypeBalanceUpdate),
		ConnectionID: "conn-1",
		Balances: []models.Balance{
			models.NewBalance("BTC", decimal.NewFromFloat(0.5), decimal.Zero),
		},
	}

	raw, err := json.Marshal(&msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "balanceUpdate" {
		t.Errorf("type = %v", decoded["type"])
	}
	if decoded["connection_id"] != "conn-1" {
		t.Errorf("connection_id = %v", decoded["connection_id"])
	}
}

// Медленный клиент с забитым буфером не блокирует broadcast
func TestHub_SlowClientRemoved(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- slow

	deadline := time.After(time.Second)
	for hub.ClientCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("client was not registered")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// первый broadcast забивает буфер, второй помечает клиента медленным
	hub.BroadcastBalanceUpdate("conn-1", nil)
	hub.BroadcastBalanceUpdate("conn-1", nil)

	deadline = time.After(time.Second)
	for hub.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("slow client was not removed")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
