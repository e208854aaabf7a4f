// rtcpeer: CLI entry point.
//
// This tool negotiates a WebRTC session between two peers over a WebSocket
// signaling relay. "rtcpeer relay" runs the relay; "rtcpeer peer" joins it,
// negotiates, and relays stdin lines to the other peer as plain text.
//
// The peer command can be launched interactively (no --url) or
// non-interactively via flags.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/1ureka/rtcsignal/internal/config"
	"github.com/1ureka/rtcsignal/internal/negotiation"
	"github.com/1ureka/rtcsignal/internal/peer"
	"github.com/1ureka/rtcsignal/internal/signaling"
	"github.com/1ureka/rtcsignal/internal/util"
)

var version = "dev"

const statsInterval = 5 * time.Second

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug, trace bool

	root := &cobra.Command{
		Use:           "rtcpeer",
		Short:         "WebRTC offer/answer negotiation over a WebSocket relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case trace:
				util.EnableTrace()
			case debug:
				util.EnableDebug()
			}
			pterm.Info.Println(fmt.Sprintf("rtcpeer — v%s", version))
			pterm.Println()
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&trace, "trace", false, "Enable trace logging, including pion internals")

	root.AddCommand(newRelayCmd(), newPeerCmd())
	return root
}

// ---------------------------------------------------------------------------
// relay
// ---------------------------------------------------------------------------

func newRelayCmd() *cobra.Command {
	var cfg config.Relay
	var listen bool
	var port int

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the WebSocket signaling relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Addr == "" {
				cfg.Addr = relayAddr(listen, port)
			}
			return runRelay(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", "", "Listen address (overrides --port/--listen)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (0 picks a random port)")
	cmd.Flags().BoolVar(&listen, "listen", false, "Listen on all network interfaces (for LAN access)")
	cmd.Flags().StringVar(&cfg.PIN, "pin", "", "PIN clients must present (\"random\" generates one)")
	cmd.Flags().BoolVar(&cfg.Echo, "echo", false, "Echo every message back to its sender")
	return cmd
}

func relayAddr(listen bool, port int) string {
	if listen {
		return fmt.Sprintf(":%d", port)
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func runRelay(ctx context.Context, cfg config.Relay) error {
	if cfg.PIN == "random" {
		cfg.PIN = config.GeneratePIN(4)
	}

	srv := signaling.NewServer(signaling.ServerOptions{
		PIN:           cfg.PIN,
		Echo:          cfg.Echo,
		LoggerFactory: util.NewLoggerFactory(),
	})
	port, err := srv.Start(cfg.Addr)
	if err != nil {
		return err
	}
	defer srv.Close()

	pin := cfg.PIN
	if pin == "" {
		pin = "(none)"
	}
	pterm.DefaultBox.WithTitle("WebSocket Signaling Relay").Println(
		fmt.Sprintf("Port : %d\nPIN  : %s\nPath : /ws", port, pin))
	pterm.Println()
	util.LogInfo("waiting for peers, press Ctrl+C to stop")

	util.StartStatsReporter(ctx, statsInterval)
	<-ctx.Done()

	util.LogInfo("relay stopped (%d client(s) connected)", srv.Clients())
	return nil
}

// ---------------------------------------------------------------------------
// peer
// ---------------------------------------------------------------------------

func newPeerCmd() *cobra.Command {
	var cfg config.Peer
	var offer bool
	var pin string

	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Join a relay and negotiate a WebRTC session",
		Long: "Join a relay and negotiate a WebRTC session.\n\n" +
			"Start the answering peer first, then the offering peer (--offer).\n" +
			"Every stdin line is sent to the other peer; \"/offer\" starts a new round.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Role = config.RoleAnswer
			if offer {
				cfg.Role = config.RoleOffer
			}

			if cfg.URL == "" {
				cfg.URL = askURL()
			} else {
				u, err := config.NormalizeURL(cfg.URL)
				if err != nil {
					return err
				}
				cfg.URL = u
			}

			u, err := config.WithPIN(cfg.URL, pin)
			if err != nil {
				return err
			}
			cfg.URL = u

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runPeer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "", "Relay URL (e.g. ws://127.0.0.1:8080)")
	cmd.Flags().StringVar(&pin, "pin", "", "Relay PIN")
	cmd.Flags().BoolVar(&offer, "offer", false, "Send the first offer")
	cmd.Flags().StringSliceVar(&cfg.STUN, "stun", nil, "ICE server URL (repeatable, default "+peer.DefaultSTUNServer+")")
	cmd.Flags().StringSliceVar(&cfg.Receive, "receive", nil, "Media kinds to receive: audio, video")
	cmd.Flags().StringVar(&cfg.DataChannel, "datachannel", "data", "Label of the pre-negotiated data channel (\"\" for none)")
	return cmd
}

func runPeer(ctx context.Context, cfg config.Peer) error {
	lf := util.NewLoggerFactory()

	util.LogInfo("connecting to %s", cfg.URL)
	ch, err := signaling.Connect(ctx, cfg.URL)
	if err != nil {
		return err
	}

	ctrl, err := peer.New(cfg.PeerConfig(), lf)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to create peer: %w", err)
	}

	coord := negotiation.New(ch, ctrl, negotiation.Options{LoggerFactory: lf})
	defer func() {
		coord.Close()
		<-coord.Done()
	}()

	opened := make(chan struct{})
	coord.OnOpen(func() { close(opened) })
	coord.OnMessage(func(text string) {
		pterm.Println(pterm.Cyan("peer> ") + text)
	})
	coord.OnError(func(err error) {
		util.LogWarning("%v", err)
	})
	coord.OnTrack(func(t peer.Track) {
		util.LogSuccess("receiving %s track %s (stream %s)", t.Kind, t.ID, t.StreamID)
	})
	coord.Start()
	<-opened

	util.LogSuccess("signaling connected [%s] as %s", coord.ID(), cfg.Role)
	util.StartStatsReporter(ctx, statsInterval)

	if cfg.Role == config.RoleOffer {
		startOffer(ctx, coord)
	}

	go readStdin(ctx, coord)

	select {
	case <-ctx.Done():
	case <-coord.Done():
		util.LogWarning("signaling channel closed")
	}

	util.LogInfo("negotiation state: %s, connection: %s", coord.State(), ctrl.ConnectionState())
	return nil
}

// startOffer runs one local offer round and logs its outcome.
func startOffer(ctx context.Context, coord *negotiation.Coordinator) {
	err := coord.Offer(ctx)
	switch {
	case err == nil:
		util.LogInfo("offer sent")
	case errors.Is(err, negotiation.ErrOfferPending):
		util.LogWarning("an offer is already outstanding")
	case errors.Is(err, negotiation.ErrAnswerPending):
		util.LogWarning("the last remote offer was not answered, waiting for the peer to offer again")
	default:
		util.LogError("offer failed: %v", err)
	}
}

// readStdin sends every stdin line to the remote peer as plain text.
func readStdin(ctx context.Context, coord *negotiation.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/offer":
			startOffer(ctx, coord)
			continue
		}

		if err := coord.Send(line); err != nil {
			util.LogWarning("send failed: %v", err)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askURL prompts the user for a valid relay URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Relay URL (e.g. ws://127.0.0.1:8080)").
			Show()

		wsURL, err := config.NormalizeURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
