package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// DefaultRecent is the number of trades listed in a report.
const DefaultRecent = 20

// Generator produces reports from the trade ledger.
type Generator struct {
	trades storage.TradeRecordStore
	recent int
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(trades storage.TradeRecordStore) *Generator {
	return &Generator{
		trades: trades,
		recent: DefaultRecent,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithRecent sets how many recent trades the report lists.
func (g *Generator) WithRecent(n int) *Generator {
	if n > 0 {
		g.recent = n
	}
	return g
}

// Generate loads the ledger and builds a report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	all, err := g.trades.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	recent := make([]*domain.TradeRecord, 0, g.recent)
	for i := len(all) - 1; i >= 0 && len(recent) < g.recent; i-- {
		recent = append(recent, all[i])
	}

	return &Report{
		GeneratedAt: g.now(),
		Summary:     Summarize(all),
		ExitReasons: byExitReason(all),
		Tokens:      byToken(all),
		Recent:      recent,
	}, nil
}

// Summarize aggregates trades given in close order.
func Summarize(trades []*domain.TradeRecord) Summary {
	var s Summary
	if len(trades) == 0 {
		return s
	}

	var (
		total, pct, hold decimal.Decimal
		peak, cumulative decimal.Decimal
		drawdown         decimal.Decimal
		streak           int
	)
	s.DateRangeStart = trades[0].ClosedAt
	s.DateRangeEnd = trades[0].ClosedAt
	s.BestPnLSOL = trades[0].NetPnLSOL
	s.WorstPnLSOL = trades[0].NetPnLSOL

	for _, t := range trades {
		s.TotalTrades++
		if t.Win {
			s.Wins++
			streak = 0
		} else {
			s.Losses++
			streak++
			if streak > s.MaxConsecutiveLosses {
				s.MaxConsecutiveLosses = streak
			}
		}

		net := decimal.NewFromFloat(t.NetPnLSOL)
		total = total.Add(net)
		pct = pct.Add(decimal.NewFromFloat(t.PnLPercent))
		hold = hold.Add(decimal.NewFromInt(t.HoldSeconds))

		cumulative = cumulative.Add(net)
		if cumulative.GreaterThan(peak) {
			peak = cumulative
		}
		if dd := peak.Sub(cumulative); dd.GreaterThan(drawdown) {
			drawdown = dd
		}

		s.BestPnLSOL = max(s.BestPnLSOL, t.NetPnLSOL)
		s.WorstPnLSOL = min(s.WorstPnLSOL, t.NetPnLSOL)
		s.DateRangeStart = min(s.DateRangeStart, t.ClosedAt)
		s.DateRangeEnd = max(s.DateRangeEnd, t.ClosedAt)
	}

	n := decimal.NewFromInt(int64(s.TotalTrades))
	s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	s.TotalPnLSOL = total.InexactFloat64()
	s.AvgPnLPercent = pct.Div(n).InexactFloat64()
	s.AvgHoldSeconds = hold.Div(n).InexactFloat64()
	s.MaxDrawdownSOL = drawdown.InexactFloat64()
	return s
}

func byExitReason(trades []*domain.TradeRecord) []ExitReasonRow {
	rows := make(map[domain.ExitReason]*ExitReasonRow)
	sums := make(map[domain.ExitReason]decimal.Decimal)
	for _, t := range trades {
		row, ok := rows[t.ExitReason]
		if !ok {
			row = &ExitReasonRow{Reason: t.ExitReason}
			rows[t.ExitReason] = row
		}
		row.Trades++
		if t.Win {
			row.Wins++
		}
		sums[t.ExitReason] = sums[t.ExitReason].Add(decimal.NewFromFloat(t.NetPnLSOL))
	}

	out := make([]ExitReasonRow, 0, len(rows))
	for reason, row := range rows {
		row.NetPnLSOL = sums[reason].InexactFloat64()
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

func byToken(trades []*domain.TradeRecord) []TokenRow {
	rows := make(map[string]*TokenRow)
	sums := make(map[string]decimal.Decimal)
	for _, t := range trades {
		row, ok := rows[t.Mint]
		if !ok {
			row = &TokenRow{Mint: t.Mint}
			rows[t.Mint] = row
		}
		if t.Symbol != "" {
			row.Symbol = t.Symbol
		}
		row.Trades++
		sums[t.Mint] = sums[t.Mint].Add(decimal.NewFromFloat(t.NetPnLSOL))
	}

	out := make([]TokenRow, 0, len(rows))
	for mint, row := range rows {
		row.NetPnLSOL = sums[mint].InexactFloat64()
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NetPnLSOL != out[j].NetPnLSOL {
			return out[i].NetPnLSOL > out[j].NetPnLSOL
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}
