package reporting

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/signal"
)

// DefaultConsoleInterval is the period between console tables.
const DefaultConsoleInterval = 5 * time.Second

// StatsSource yields the aggregate stats snapshot.
type StatsSource interface {
	Stats(now int64) *domain.StatsSnapshot
}

// PositionSource yields open-position snapshots.
type PositionSource interface {
	Snapshots(now int64) []domain.PositionSnapshot
}

// Console prints live engine tables to a writer.
type Console struct {
	out       io.Writer
	stats     StatsSource
	positions PositionSource
	interval  time.Duration
	now       func() time.Time
}

// NewConsole creates a console. positions may be nil.
func NewConsole(out io.Writer, stats StatsSource, positions PositionSource, interval time.Duration) *Console {
	if interval <= 0 {
		interval = DefaultConsoleInterval
	}
	return &Console{
		out:       out,
		stats:     stats,
		positions: positions,
		interval:  interval,
		now:       time.Now,
	}
}

// Run prints every interval until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Print()
		}
	}
}

// Print writes one stats table and, when positions are open, a positions table.
func (c *Console) Print() {
	now := c.now()
	ms := now.UnixMilli()
	s := c.stats.Stats(ms)

	fmt.Fprintf(c.out, "\n[%s] SOL $%.2f\n", now.Format("15:04:05"), s.SolPriceUSD)
	PrintStats(c.out, s)

	if c.positions == nil {
		return
	}
	if snaps := c.positions.Snapshots(ms); len(snaps) > 0 {
		PrintPositions(c.out, snaps)
	}
}

// PrintStats renders a stats snapshot as a two-column table.
func PrintStats(w io.Writer, s *domain.StatsSnapshot) {
	winRate := 0.0
	if s.TradesTotal > 0 {
		winRate = float64(s.Wins) / float64(s.TradesTotal) * 100
	}
	cooldown := "off"
	if s.CooldownActive {
		cooldown = "since " + formatMillis(s.CooldownStart)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	table.Append("Transactions", fmt.Sprintf("%d", s.TotalTxs))
	table.Append("Failed", fmt.Sprintf("%d", s.FailedTxs))
	table.Append("Processed", fmt.Sprintf("%d", s.ProgramTxs))
	table.Append("Buys seen", fmt.Sprintf("%d", s.BuyTxs))
	for _, name := range signal.Names(s.FilterStats) {
		if n := s.FilterStats[name]; n > 0 {
			table.Append("Rejected: "+name, fmt.Sprintf("%d", n))
		}
	}
	table.Append("Open positions", fmt.Sprintf("%d", s.OpenPositions))
	table.Append("Trades", fmt.Sprintf("%d (%dW/%dL, %.1f%%)", s.TradesTotal, s.Wins, s.Losses, winRate))
	table.Append("Realized P/L", fmt.Sprintf("%.4f SOL", s.TotalPnLSOL))
	table.Append("Cooldown", cooldown)
	table.Render()
}

// PrintPositions renders open positions.
func PrintPositions(w io.Writer, snaps []domain.PositionSnapshot) {
	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Mint", "P/L %", "Net SOL", "Held", "Left", "Hint")
	for _, p := range snaps {
		table.Append(
			p.Symbol,
			shortMint(p.Mint),
			fmt.Sprintf("%+.2f", p.PnLPercent),
			fmt.Sprintf("%+.4f", p.NetPnLSOL),
			fmt.Sprintf("%ds", p.HeldSeconds),
			fmt.Sprintf("%ds", p.RemainingSeconds),
			p.Hint,
		)
	}
	table.Render()
}

// PrintReport renders a ledger report as tables.
func PrintReport(w io.Writer, r *Report) {
	s := r.Summary
	fmt.Fprintf(w, "Trade ledger, generated %s\n", r.GeneratedAt.Format(time.RFC3339))

	summary := tablewriter.NewWriter(w)
	summary.Header("Trades", "Wins", "Losses", "Win rate", "Total P/L", "Avg P/L %", "Max DD", "Max loss run")
	summary.Append(
		fmt.Sprintf("%d", s.TotalTrades),
		fmt.Sprintf("%d", s.Wins),
		fmt.Sprintf("%d", s.Losses),
		fmt.Sprintf("%.1f%%", s.WinRate*100),
		fmt.Sprintf("%.4f SOL", s.TotalPnLSOL),
		fmt.Sprintf("%.2f", s.AvgPnLPercent),
		fmt.Sprintf("%.4f", s.MaxDrawdownSOL),
		fmt.Sprintf("%d", s.MaxConsecutiveLosses),
	)
	summary.Render()

	if len(r.ExitReasons) > 0 {
		reasons := tablewriter.NewWriter(w)
		reasons.Header("Exit reason", "Trades", "Wins", "Net SOL")
		for _, row := range r.ExitReasons {
			reasons.Append(string(row.Reason), fmt.Sprintf("%d", row.Trades),
				fmt.Sprintf("%d", row.Wins), fmt.Sprintf("%+.4f", row.NetPnLSOL))
		}
		reasons.Render()
	}

	if len(r.Recent) > 0 {
		trades := tablewriter.NewWriter(w)
		trades.Header("Closed", "Symbol", "Mint", "P/L %", "Net SOL", "Hold", "Reason")
		for _, t := range r.Recent {
			trades.Append(
				formatMillis(t.ClosedAt),
				t.Symbol,
				shortMint(t.Mint),
				fmt.Sprintf("%+.2f", t.PnLPercent),
				fmt.Sprintf("%+.4f", t.NetPnLSOL),
				fmt.Sprintf("%ds", t.HoldSeconds),
				string(t.ExitReason),
			)
		}
		trades.Render()
	}
}

func shortMint(mint string) string {
	if len(mint) <= 12 {
		return mint
	}
	return mint[:4] + ".." + mint[len(mint)-4:]
}
