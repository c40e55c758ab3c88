package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/opencivic/ask311/pkg/duck"
	"github.com/opencivic/ask311/pkg/etl"
	"github.com/opencivic/ask311/pkg/logger"
)

const defaultDBPath = "data/nyc311.duckdb"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		verbose bool
		dbPath  string
		csvPath string
	)
	flag.BoolVar(&verbose, "verbose", false, "verbose mode - show debug logs")
	flag.StringVar(&dbPath, "db", getenv("DB_PATH", defaultDBPath), "path to the duckdb database file (env: DB_PATH)")
	flag.StringVar(&csvPath, "csv", "", "path to the 311 service requests csv export (required)")
	flag.Parse()

	if csvPath == "" {
		return fmt.Errorf("--csv is required")
	}

	log := logger.New(verbose)

	db, err := duck.Open(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return etl.NewLoader(log, db).Load(ctx, csvPath)
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
