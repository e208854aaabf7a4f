package signaling

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServerOptions configures a relay Server.
type ServerOptions struct {
	// PIN, when set, must be passed as the "pin" query parameter.
	PIN string

	// Echo returns every message to its sender instead of relaying it.
	Echo bool

	LoggerFactory logging.LoggerFactory
}

// Server is a WebSocket relay used as the signaling rendezvous: every message
// a client sends is forwarded, unchanged, to every other connected client.
type Server struct {
	pin  string
	echo bool
	log  logging.LeveledLogger

	listener net.Listener
	httpSrv  *http.Server

	mu      sync.Mutex
	clients map[string]*relayClient
}

// relayClient is one connected WebSocket with its own write lock.
type relayClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *relayClient) send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// NewServer creates a relay server. It does not listen until Start.
func NewServer(opts ServerOptions) *Server {
	lf := opts.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Server{
		pin:     opts.PIN,
		echo:    opts.Echo,
		log:     lf.NewLogger("relay"),
		clients: make(map[string]*relayClient),
	}
}

// Handler returns the HTTP handler serving the relay on /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start begins listening on addr (":0" picks a random port). Returns the
// assigned port number.
func (s *Server) Start(addr string) (int, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("failed to start relay server: %w", err)
	}
	s.listener = listener
	s.httpSrv = &http.Server{Handler: s.Handler()}

	go func() {
		if err := s.httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("relay server stopped: %v", err)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, nil
}

// Clients returns the number of currently connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops the listener and disconnects every client.
func (s *Server) Close() error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Close()
	}

	s.mu.Lock()
	for _, c := range s.clients {
		c.conn.Close()
	}
	s.mu.Unlock()
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.pin != "" && r.URL.Query().Get("pin") != s.pin {
		http.Error(w, "Invalid PIN", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("upgrade failed: %v", err)
		return
	}

	c := &relayClient{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.log.Infof("client %s connected from %s", c.id, r.RemoteAddr)

	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		conn.Close()
		s.log.Infof("client %s disconnected", c.id)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.relay(c, string(data))
	}
}

// relay forwards text to every client except the sender, or back to the
// sender in echo mode.
func (s *Server) relay(from *relayClient, text string) {
	if s.echo {
		if err := from.send(text); err != nil {
			s.log.Warnf("echo to %s failed: %v", from.id, err)
		}
		return
	}

	s.mu.Lock()
	targets := make([]*relayClient, 0, len(s.clients))
	for id, c := range s.clients {
		if id != from.id {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.send(text); err != nil {
			s.log.Warnf("relay %s -> %s failed: %v", from.id, c.id, err)
		}
	}
}
