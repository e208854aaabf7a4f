package peer

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServer is used when no ICE server is configured.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// ICEServer is one STUN/TURN server entry. Username and Credential are only
// used by TURN servers.
type ICEServer struct {
	Server     string
	Username   string
	Credential string
}

// Config is passed to New to build the engine.
type Config struct {
	ICEServers []ICEServer

	// Receive lists media kinds ("audio", "video") for which a recvonly
	// transceiver is added, so the remote side can send tracks.
	Receive []string

	// DataChannel, when non-empty, adds a pre-negotiated data channel with
	// this label. It gives a media-less connection something to negotiate.
	DataChannel string
}

// DefaultConfig returns a config with a single public STUN server.
func DefaultConfig() Config {
	return Config{
		ICEServers: []ICEServer{{Server: DefaultSTUNServer}},
	}
}

// webrtcConfiguration converts cfg into pion's configuration.
func (cfg Config) webrtcConfiguration() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: []string{s.Server}}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	return webrtc.Configuration{ICEServers: servers}
}

// newDataChannel creates a pre-negotiated DataChannel (ID 0) on pc. Both
// sides create it independently, so no OnDataChannel handshake is needed.
func newDataChannel(pc *webrtc.PeerConnection, label string) (*webrtc.DataChannel, error) {
	negotiated := true
	id := uint16(0)

	return pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
}
