package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/opencivic/ask311/pkg/duck"
	"github.com/opencivic/ask311/pkg/logger"
	"github.com/opencivic/ask311/pkg/metrics"
	"github.com/opencivic/ask311/pkg/pipeline"
	"github.com/opencivic/ask311/pkg/querier"
	"github.com/opencivic/ask311/pkg/schema"
	"github.com/opencivic/ask311/pkg/server"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultAddr        = ":8080"
	defaultMetricsAddr = ":9090"
	defaultDBPath      = "data/nyc311.duckdb"
	defaultModel       = string(anthropic.ModelClaude3_5Haiku20241022)
	defaultMaxTokens   = 4096
	defaultSchemaTTL   = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := logger.New(cfg.Verbose)

	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics listener", "error", err)
				os.Exit(1)
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to serve prometheus metrics", "error", err)
				os.Exit(1)
			}
		}()
	}

	db, err := duck.Open(cfg.DBPath, true)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	schemaProvider := schema.NewProvider(log, db, cfg.SchemaTTL)

	p, err := pipeline.New(&pipeline.Config{
		Logger:  log,
		LLM:     pipeline.NewAnthropicLLMClient(log, anthropic.Model(cfg.Model), cfg.MaxTokens),
		Querier: querier.New(log, db),
		Schema:  schemaProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	srv, err := server.New(&server.Config{
		Logger:         log,
		Addr:           cfg.Addr,
		Pipeline:       p,
		Schema:         schemaProvider,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting ask311 server", "version", version, "addr", cfg.Addr, "db", cfg.DBPath, "model", cfg.Model)
	return srv.Run(ctx)
}

type Config struct {
	ShowVersion bool
	Verbose     bool

	Addr        string
	MetricsAddr string
	DBPath      string

	Model     string
	MaxTokens int64

	SchemaTTL      time.Duration
	AllowedOrigins []string
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return i, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadConfig() (Config, error) {
	var cfg Config
	var originsCSV string
	var maxTokens int

	flag.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")

	flag.StringVar(&cfg.Addr, "addr", getenv("ADDR", defaultAddr), "address to listen on (env: ADDR)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("METRICS_ADDR", defaultMetricsAddr), "address to listen on for prometheus metrics, empty disables (env: METRICS_ADDR)")
	flag.StringVar(&cfg.DBPath, "db", getenv("DB_PATH", defaultDBPath), "path to the duckdb database file (env: DB_PATH)")
	flag.StringVar(&cfg.Model, "model", getenv("ANTHROPIC_MODEL", defaultModel), "anthropic model (env: ANTHROPIC_MODEL)")
	flag.StringVar(&originsCSV, "allowed-origins", getenv("ALLOWED_ORIGINS", ""), "csv of allowed CORS origins (env: ALLOWED_ORIGINS)")
	flag.DurationVar(&cfg.SchemaTTL, "schema-ttl", defaultSchemaTTL, "how long the schema snapshot is cached")

	defTokens, err := getenvInt("MAX_TOKENS", defaultMaxTokens)
	if err != nil {
		return Config{}, err
	}
	flag.IntVar(&maxTokens, "max-tokens", defTokens, "max tokens per model response (env: MAX_TOKENS)")

	flag.Parse()

	cfg.MaxTokens = int64(maxTokens)
	cfg.AllowedOrigins = splitCSV(originsCSV)
	return cfg, nil
}
