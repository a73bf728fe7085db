package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"payments-engine/internal/config"
	"payments-engine/internal/ingest"
	"payments-engine/internal/report"
	"payments-engine/internal/repository"
	"payments-engine/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run replays the CSV file named in args and writes the account report to stdout.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("payments-engine", flag.ContinueOnError)
	flags.SetOutput(stderr)
	export := flags.Bool("export", false, "also store the final snapshot in Postgres (requires DB_HOST)")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: payments-engine [-export] transactions.csv\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 2
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	file, err := os.Open(flags.Arg(0))
	if err != nil {
		logger.Error("Failed to open file", "path", flags.Arg(0), "error", err)
		return 1
	}
	defer file.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := repository.NewStore(logger)
	transactions := service.NewTransactionService(store, logger)

	if _, err := transactions.ProcessStream(ctx, ingest.NewReader(file, logger)); err != nil {
		logger.Error("Failed to process transactions", "error", err)
		return 1
	}

	var snapshots *repository.SQLStore
	if *export {
		if !cfg.SnapshotsEnabled() {
			logger.Error("Snapshot export requested but DB_HOST is not set")
			return 1
		}
		db, err := repository.OpenPostgres(ctx, cfg.GetDBConnectionString())
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()
		snapshots = repository.NewSQLStore(db, logger)
	}

	accounts := service.NewAccountService(store, snapshots, logger)

	if err := report.Write(stdout, accounts.ListAccounts()); err != nil {
		logger.Error("Failed to write report", "error", err)
		return 1
	}

	if snapshots != nil {
		snapshot, err := accounts.ExportSnapshot(ctx)
		if err != nil {
			logger.Error("Failed to export snapshot", "error", err)
			return 1
		}
		logger.Info("Snapshot exported", "run_id", snapshot.RunID)
	}

	return 0
}
