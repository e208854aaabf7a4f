package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pterm/pterm"
)

func TestFormatStatsDeltas(t *testing.T) {
	prev := snapshot{sent: 2, recv: 1, run: 1}
	cur := snapshot{sent: 5, recv: 4, run: 3, failed: 1}

	got := formatStats(cur, prev)

	for _, want := range []string{"5↑", "4↓", "(+3/+3)", "3 ok", "1 failed"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatStats() = %q, missing %q", got, want)
		}
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := &stats{}
	s.AddSent()
	s.AddSent()
	s.AddRecv()
	s.AddChain()
	s.AddChainFailed()

	got := s.snapshot()
	want := snapshot{sent: 2, recv: 1, run: 1, failed: 1}
	if got != want {
		t.Errorf("snapshot() = %+v, want %+v", got, want)
	}
}

func TestLoggerFactoryScopes(t *testing.T) {
	f := NewLoggerFactory()

	own := f.NewLogger("negotiation").(*scopedLogger)
	if own.floor != pterm.LogLevelTrace {
		t.Errorf("own scope floor = %v, want trace", own.floor)
	}

	foreign := f.NewLogger("ice").(*scopedLogger)
	if foreign.floor != f.Floor {
		t.Errorf("foreign scope floor = %v, want %v", foreign.floor, f.Floor)
	}
}

func TestLogHelpersUseAppScope(t *testing.T) {
	var buf bytes.Buffer
	saved, savedLevel := pterm.DefaultLogger.Writer, pterm.DefaultLogger.Level
	pterm.DefaultLogger.Writer = &buf
	pterm.DefaultLogger.Level = pterm.LogLevelInfo
	defer func() {
		pterm.DefaultLogger.Writer = saved
		pterm.DefaultLogger.Level = savedLevel
	}()

	LogWarning("relay %s unreachable", "ws://x")
	LogDebug("hidden at info level")

	out := buf.String()
	if !strings.Contains(out, "relay ws://x unreachable") {
		t.Errorf("warning not written: %q", out)
	}
	if !strings.Contains(out, appScope) {
		t.Errorf("output %q does not carry the %q scope", out, appScope)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug line printed at info level: %q", out)
	}
}
