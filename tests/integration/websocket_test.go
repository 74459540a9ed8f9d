//go:build integration

// WebSocket Integration Tests
// Verify upgrade handshake, authentication and targeted delivery.
package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"binaryoptions/internal/models"

	gws "github.com/gorilla/websocket"
)

func dialWS(t *testing.T, ts *TestServer, accessToken string) *gws.Conn {
	t.Helper()

	url := strings.Replace(ts.Server.URL, "http://", "ws://", 1) + "/ws?token=" + accessToken
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	return conn
}

func TestWebSocket_RejectsAnonymous(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		t.Skip("Skipping: test server not available")
	}
	defer ts.Cleanup()

	url := strings.Replace(ts.Server.URL, "http://", "ws://", 1) + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", resp.StatusCode)
	}
}

func TestWebSocket_PriceBroadcast(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		t.Skip("Skipping: test server not available")
	}
	defer ts.Cleanup()

	auth := registerUser(t, ts, "ws-price@example.com")
	conn := dialWS(t, ts, auth.AccessToken)
	defer conn.Close()

	// Даем hub время зарегистрировать клиента
	time.Sleep(100 * time.Millisecond)

	asset := &models.Asset{ID: 1, Symbol: "EURUSD", CurrentPrice: 1.0860}
	ts.Hub.BroadcastPriceUpdate(asset)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	var msg struct {
		Type   string  `json:"type"`
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	// writePump может склеить несколько сообщений через \n
	first := strings.SplitN(string(raw), "\n", 2)[0]
	if err := json.Unmarshal([]byte(first), &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}

	if msg.Type != "priceUpdate" {
		t.Errorf("type: expected priceUpdate, got %q", msg.Type)
	}
	if msg.Symbol != "EURUSD" {
		t.Errorf("symbol: expected EURUSD, got %q", msg.Symbol)
	}
}

func TestWebSocket_BalanceTargetedToOwner(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		t.Skip("Skipping: test server not available")
	}
	defer ts.Cleanup()

	owner := registerUser(t, ts, "ws-owner@example.com")
	other := registerUser(t, ts, "ws-other@example.com")

	ownerConn := dialWS(t, ts, owner.AccessToken)
	defer ownerConn.Close()
	otherConn := dialWS(t, ts, other.AccessToken)
	defer otherConn.Close()

	time.Sleep(100 * time.Millisecond)

	ts.Hub.BroadcastBalanceUpdate(owner.User.ID, 750)

	ownerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ownerConn.ReadMessage()
	if err != nil {
		t.Fatalf("owner failed to read message: %v", err)
	}
	if !strings.Contains(string(raw), "balanceUpdate") {
		t.Errorf("expected balanceUpdate message, got %s", raw)
	}

	// Чужой клиент ничего не получает
	otherConn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := otherConn.ReadMessage(); err == nil {
		t.Error("other user should not receive foreign balance update")
	}
}
