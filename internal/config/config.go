// Package config holds the CLI configuration types.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/1ureka/rtcsignal/internal/peer"
)

// Role decides which side starts the first offer/answer round.
type Role string

const (
	RoleOffer  Role = "offer"
	RoleAnswer Role = "answer"
)

// Peer stores the parameters of one negotiating peer.
type Peer struct {
	Role        Role
	URL         string   // signaling relay, normalized by NormalizeURL
	STUN        []string // ICE server URLs; empty means peer.DefaultSTUNServer
	Receive     []string // media kinds to receive ("audio", "video")
	DataChannel string   // label of the pre-negotiated data channel, "" for none
}

// Relay stores the parameters of the signaling relay.
type Relay struct {
	Addr string
	PIN  string
	Echo bool
}

// Validate checks the fields NormalizeURL does not cover.
func (c Peer) Validate() error {
	switch c.Role {
	case RoleOffer, RoleAnswer:
	default:
		return fmt.Errorf("invalid role %q: must be %q or %q", c.Role, RoleOffer, RoleAnswer)
	}
	if c.URL == "" {
		return errors.New("missing signaling URL")
	}
	for _, kind := range c.Receive {
		if kind != "audio" && kind != "video" {
			return fmt.Errorf("invalid media kind %q: must be audio or video", kind)
		}
	}
	return nil
}

// PeerConfig converts c into the engine configuration.
func (c Peer) PeerConfig() peer.Config {
	cfg := peer.DefaultConfig()
	if len(c.STUN) > 0 {
		cfg.ICEServers = nil
		for _, s := range c.STUN {
			cfg.ICEServers = append(cfg.ICEServers, peer.ICEServer{Server: s})
		}
	}
	cfg.Receive = c.Receive
	cfg.DataChannel = c.DataChannel
	return cfg
}

// NormalizeURL validates a raw relay URL and rewrites it to the relay's
// WebSocket endpoint. A bare host gets wss, http(s) maps to ws(s), and the
// query string is kept so a "pin" parameter survives.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	u.Fragment = ""
	return u.String(), nil
}

// WithPIN sets the "pin" query parameter on a normalized relay URL.
func WithPIN(wsURL, pin string) (string, error) {
	if pin == "" {
		return wsURL, nil
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid WebSocket URL: %s", wsURL)
	}
	q := u.Query()
	q.Set("pin", pin)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// GeneratePIN returns a random numeric PIN of the specified length.
func GeneratePIN(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, _ := rand.Int(rand.Reader, big.NewInt(10))
		digits[i] = byte('0') + byte(n.Int64())
	}
	return string(digits)
}
