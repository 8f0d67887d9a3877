package reporting

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"pumpfun-engine/internal/domain"
)

type staticStats struct{ snap *domain.StatsSnapshot }

func (s staticStats) Stats(int64) *domain.StatsSnapshot { return s.snap }

type staticPositions []domain.PositionSnapshot

func (p staticPositions) Snapshots(int64) []domain.PositionSnapshot { return p }

func TestConsole_Print(t *testing.T) {
	var buf bytes.Buffer
	stats := staticStats{snap: &domain.StatsSnapshot{
		TotalTxs:    120,
		ProgramTxs:  118,
		BuyTxs:      64,
		FilterStats: map[string]int64{"mc": 30, "volume": 5, "pump": 0},
		TradesTotal: 4,
		Wins:        3,
		Losses:      1,
		TotalPnLSOL: 0.25,
		SolPriceUSD: 151.5,
	}}
	positions := staticPositions{{
		Mint:             "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
		Symbol:           "AAA",
		PnLPercent:       12.5,
		HeldSeconds:      3,
		RemainingSeconds: 57,
		Hint:             domain.HintActive,
	}}

	c := NewConsole(&buf, stats, positions, time.Second)
	c.now = func() time.Time { return time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC) }
	c.Print()

	out := buf.String()
	for _, want := range []string{
		"SOL $151.50",
		"Buys seen",
		"64",
		"Rejected: mc",
		"3W/1L",
		"0.2500 SOL",
		"7GCi..W2hr",
		"+12.50",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Rejected: pump") {
		t.Error("zero rejection counts should be hidden")
	}
	if strings.Index(out, "Rejected: mc") > strings.Index(out, "Rejected: volume") {
		t.Error("rejections should be ordered by count")
	}
}

func TestConsole_NoPositionsTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, staticStats{snap: &domain.StatsSnapshot{}}, staticPositions{}, 0)
	c.Print()

	if strings.Contains(buf.String(), "Hint") {
		t.Error("positions table printed with no open positions")
	}
	if c.interval != DefaultConsoleInterval {
		t.Errorf("interval = %v, want default", c.interval)
	}
}
