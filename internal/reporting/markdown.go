package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString("# Trade Ledger Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", s.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", s.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Total P/L (SOL) | %.4f |\n", s.TotalPnLSOL))
	sb.WriteString(fmt.Sprintf("| Avg P/L %% | %.2f |\n", s.AvgPnLPercent))
	sb.WriteString(fmt.Sprintf("| Best / Worst (SOL) | %.4f / %.4f |\n", s.BestPnLSOL, s.WorstPnLSOL))
	sb.WriteString(fmt.Sprintf("| Max Drawdown (SOL) | %.4f |\n", s.MaxDrawdownSOL))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLosses))
	sb.WriteString(fmt.Sprintf("| Avg Hold (s) | %.1f |\n", s.AvgHoldSeconds))
	sb.WriteString("\n")

	sb.WriteString("## Exit Reasons\n\n")
	if len(r.ExitReasons) > 0 {
		sb.WriteString("| Reason | Trades | Wins | Net (SOL) |\n")
		sb.WriteString("|--------|--------|------|-----------|\n")
		for _, row := range r.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f |\n",
				row.Reason, row.Trades, row.Wins, row.NetPnLSOL))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Recent Trades\n\n")
	if len(r.Recent) > 0 {
		sb.WriteString("| Closed | Symbol | Mint | P/L % | Net (SOL) | Hold (s) | Reason |\n")
		sb.WriteString("|--------|--------|------|-------|-----------|----------|--------|\n")
		for _, t := range r.Recent {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f | %.4f | %d | %s |\n",
				formatMillis(t.ClosedAt), t.Symbol, t.Mint,
				t.PnLPercent, t.NetPnLSOL, t.HoldSeconds, t.ExitReason))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
