package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/reporting"
	"pumpfun-engine/internal/storage"
	"pumpfun-engine/internal/storage/migrations"
	pgstore "pumpfun-engine/internal/storage/postgres"
	sqlitestore "pumpfun-engine/internal/storage/sqlite"
)

func main() {
	envFile := flag.String("env-file", ".env", "Dotenv file with POSTGRES_DSN or SQLITE_PATH")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides POSTGRES_DSN)")
	sqlitePath := flag.String("sqlite-path", "", "SQLite ledger file (overrides SQLITE_PATH)")
	format := flag.String("format", "table", "Output format: table, markdown or csv")
	outputDir := flag.String("output-dir", "", "Write LEDGER_REPORT.md and TRADES.csv here instead of printing")
	recent := flag.Int("recent", reporting.DefaultRecent, "Number of recent trades listed")
	flag.Parse()

	env := config.LoadEnv(*envFile)
	if *postgresDSN != "" {
		env.PostgresDSN = *postgresDSN
	}
	if *sqlitePath != "" {
		env.SQLitePath = *sqlitePath
	}

	ctx := context.Background()

	ledger, closeLedger, err := openLedger(ctx, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		os.Exit(1)
	}
	defer closeLedger()

	report, err := reporting.NewGenerator(ledger).WithRecent(*recent).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if *outputDir != "" {
		if err := writeFiles(ctx, *outputDir, ledger, report); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Ledger report generated successfully:")
		fmt.Printf("  - %s\n", filepath.Join(*outputDir, "LEDGER_REPORT.md"))
		fmt.Printf("  - %s\n", filepath.Join(*outputDir, "TRADES.csv"))
		return
	}

	if err := render(ctx, os.Stdout, *format, ledger, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openLedger connects to postgres when configured, otherwise sqlite.
func openLedger(ctx context.Context, env config.Env) (storage.TradeRecordStore, func(), error) {
	switch {
	case env.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, env.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgstore.NewTradeRecordStore(pool), pool.Close, nil
	case env.SQLitePath != "":
		db, err := sqlitestore.Open(ctx, env.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlitestore.NewTradeRecordStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, errors.New("--postgres-dsn or --sqlite-path is required")
	}
}

func render(ctx context.Context, w io.Writer, format string, ledger storage.TradeRecordStore, report *reporting.Report) error {
	switch format {
	case "table":
		reporting.PrintReport(w, report)
		return nil
	case "markdown":
		_, err := io.WriteString(w, reporting.RenderMarkdown(report))
		return err
	case "csv":
		trades, err := ledger.GetAll(ctx)
		if err != nil {
			return err
		}
		return reporting.WriteCSV(w, trades)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeFiles(ctx context.Context, dir string, ledger storage.TradeRecordStore, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "LEDGER_REPORT.md"), []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "TRADES.csv"))
	if err != nil {
		return err
	}
	defer f.Close()
	return render(ctx, f, "csv", ledger, report)
}
