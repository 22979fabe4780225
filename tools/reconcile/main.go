package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	ledger "lunchbot/internal/ledger/domain"
	ledgerrepo "lunchbot/internal/ledger/infrastructure/postgres"
	userrepo "lunchbot/internal/users/infrastructure/postgres"
)

type config struct {
	dbURL   string
	outPath string
}

type driftRow struct {
	UserID      string
	DisplayName string
	Stored      decimal.Decimal
	Recomputed  decimal.Decimal
	Drift       decimal.Decimal
}

// reconcile recomputes every balance from the transaction log and reports
// drift against the stored balances. A clean ledger produces no rows.
func main() {
	cfg := parseFlags()

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fatal("db open error: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		fatal("db ping error: %v", err)
	}

	drift, checked, err := run(ctx, db)
	if err != nil {
		fatal("reconcile error: %v", err)
	}

	fmt.Printf("checked %d users, %d with drift\n", checked, len(drift))
	for _, row := range drift {
		fmt.Printf("user=%s name=%q stored=%s recomputed=%s drift=%s\n",
			row.UserID, row.DisplayName, row.Stored.String(), row.Recomputed.String(), row.Drift.String())
	}

	if cfg.outPath != "" {
		if err := writeCSV(cfg.outPath, drift); err != nil {
			fatal("write csv error: %v", err)
		}
		fmt.Printf("wrote %s\n", cfg.outPath)
	}

	if len(drift) > 0 {
		os.Exit(1)
	}
}

func run(ctx context.Context, db *sql.DB) ([]driftRow, int, error) {
	users, err := userrepo.NewUserRepository(db).List(ctx)
	if err != nil {
		return nil, 0, err
	}
	ledgerRepo := ledgerrepo.NewLedgerRepository(db)

	var drift []driftRow
	for _, user := range users {
		txs, err := ledgerRepo.ListByUser(ctx, user.ID)
		if err != nil {
			return nil, 0, err
		}
		recomputed, err := ledger.Sum(txs)
		if err != nil {
			return nil, 0, err
		}
		if recomputed.Equal(user.Balance) {
			continue
		}
		drift = append(drift, driftRow{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			Stored:      user.Balance,
			Recomputed:  recomputed,
			Drift:       user.Balance.Sub(recomputed),
		})
	}
	return drift, len(users), nil
}

func writeCSV(path string, drift []driftRow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"user_id", "display_name", "stored", "recomputed", "drift"}); err != nil {
		return err
	}
	for _, row := range drift {
		record := []string{row.UserID, row.DisplayName, row.Stored.String(), row.Recomputed.String(), row.Drift.String()}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseFlags() config {
	cfg := config{}
	flag.StringVar(&cfg.dbURL, "db", os.Getenv("DATABASE_URL"), "database url")
	flag.StringVar(&cfg.outPath, "csv", "", "optional csv output path")
	flag.Parse()
	if cfg.dbURL == "" {
		fatal("-db or DATABASE_URL is required")
	}
	return cfg
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
