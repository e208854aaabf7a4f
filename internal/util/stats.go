package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling/negotiation counter.
var Stats = &stats{}

type stats struct {
	SignalsSent  atomic.Int64 // cumulative signaling messages written to the channel
	SignalsRecv  atomic.Int64 // cumulative signaling messages read from the channel
	ChainsRun    atomic.Int64 // cumulative negotiation chains completed successfully
	ChainsFailed atomic.Int64 // cumulative negotiation chains aborted by an error
}

func (s *stats) AddSent()        { s.SignalsSent.Add(1) }
func (s *stats) AddRecv()        { s.SignalsRecv.Add(1) }
func (s *stats) AddChain()       { s.ChainsRun.Add(1) }
func (s *stats) AddChainFailed() { s.ChainsFailed.Add(1) }

// snapshot is a point-in-time copy of the counters.
type snapshot struct {
	sent, recv, run, failed int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		sent:   s.SignalsSent.Load(),
		recv:   s.SignalsRecv.Load(),
		run:    s.ChainsRun.Load(),
		failed: s.ChainsFailed.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs signaling statistics
// every interval, but only when something changed. It stops when ctx is
// cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev snapshot
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if cur != prev {
					pterm.DefaultLogger.Info(formatStats(cur, prev))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a one-line summary of the counters and their deltas
// since the previous report.
func formatStats(cur, prev snapshot) string {
	return fmt.Sprintf("Signals: %3d↑ %3d↓ (+%d/+%d) | Chains: %3d ok %3d failed",
		cur.sent,
		cur.recv,
		cur.sent-prev.sent,
		cur.recv-prev.recv,
		cur.run,
		cur.failed,
	)
}
