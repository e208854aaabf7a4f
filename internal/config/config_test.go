package config

import (
	"testing"

	"github.com/1ureka/rtcsignal/internal/peer"
)

func TestNormalizeURL(t *testing.T) {
	testCases := []struct {
		raw  string
		want string
	}{
		{"ws://127.0.0.1:8080", "ws://127.0.0.1:8080/ws"},
		{"  wss://relay.example.org/anything  ", "wss://relay.example.org/ws"},
		{"relay.example.org:443", "wss://relay.example.org:443/ws"},
		{"http://localhost:9000/ws", "ws://localhost:9000/ws"},
		{"https://relay.example.org", "wss://relay.example.org/ws"},
		{"ws://localhost:9000/?pin=1234", "ws://localhost:9000/ws?pin=1234"},
	}

	for _, tc := range testCases {
		got, err := NormalizeURL(tc.raw)
		if err != nil {
			t.Errorf("NormalizeURL(%q) failed: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}

	for _, raw := range []string{"", "ws://", "://nohost"} {
		if _, err := NormalizeURL(raw); err == nil {
			t.Errorf("NormalizeURL(%q) succeeded, want error", raw)
		}
	}
}

func TestWithPIN(t *testing.T) {
	got, err := WithPIN("ws://localhost:9000/ws", "0420")
	if err != nil {
		t.Fatalf("WithPIN failed: %v", err)
	}
	if got != "ws://localhost:9000/ws?pin=0420" {
		t.Errorf("WithPIN = %q", got)
	}

	if got, _ := WithPIN("ws://localhost:9000/ws", ""); got != "ws://localhost:9000/ws" {
		t.Errorf("WithPIN with empty pin = %q", got)
	}
}

func TestGeneratePIN(t *testing.T) {
	pin := GeneratePIN(6)
	if len(pin) != 6 {
		t.Fatalf("len(pin) = %d, want 6", len(pin))
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			t.Fatalf("pin %q contains non-digit %q", pin, r)
		}
	}
}

func TestPeerValidate(t *testing.T) {
	ok := Peer{Role: RoleOffer, URL: "ws://localhost/ws", Receive: []string{"audio", "video"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := []Peer{
		{Role: "host", URL: "ws://localhost/ws"},
		{Role: RoleAnswer},
		{Role: RoleAnswer, URL: "ws://localhost/ws", Receive: []string{"smell"}},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Validate(%+v) succeeded, want error", c)
		}
	}
}

func TestPeerConfig(t *testing.T) {
	def := Peer{Role: RoleOffer}.PeerConfig()
	if len(def.ICEServers) != 1 || def.ICEServers[0].Server != peer.DefaultSTUNServer {
		t.Errorf("default ICE servers = %+v", def.ICEServers)
	}

	cfg := Peer{
		STUN:        []string{"stun:a.example.org", "stun:b.example.org"},
		Receive:     []string{"video"},
		DataChannel: "chat",
	}.PeerConfig()
	if len(cfg.ICEServers) != 2 || cfg.ICEServers[1].Server != "stun:b.example.org" {
		t.Errorf("ICE servers = %+v", cfg.ICEServers)
	}
	if cfg.DataChannel != "chat" || len(cfg.Receive) != 1 {
		t.Errorf("config = %+v", cfg)
	}
}
