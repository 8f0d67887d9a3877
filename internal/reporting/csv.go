package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"pumpfun-engine/internal/domain"
)

var csvHeader = []string{
	"trade_id", "mint", "symbol", "entry_time", "closed_at",
	"entry_price", "exit_price", "pnl_percent", "net_pnl_sol", "fees_sol",
	"hold_seconds", "exit_reason", "outcome", "amount_sol", "trade_sequence",
}

// WriteCSV writes trades as CSV rows with a header.
func WriteCSV(w io.Writer, trades []*domain.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			t.TradeID,
			t.Mint,
			t.Symbol,
			strconv.FormatInt(t.EntryTime, 10),
			strconv.FormatInt(t.ClosedAt, 10),
			strconv.FormatFloat(t.EntryPrice, 'g', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'g', -1, 64),
			strconv.FormatFloat(t.PnLPercent, 'f', 4, 64),
			strconv.FormatFloat(t.NetPnLSOL, 'f', 6, 64),
			strconv.FormatFloat(t.FeesSOL, 'f', 6, 64),
			strconv.FormatInt(t.HoldSeconds, 10),
			string(t.ExitReason),
			t.OutcomeClass(),
			strconv.FormatFloat(t.AmountSOL, 'f', 4, 64),
			strconv.Itoa(t.TradeSequence),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
