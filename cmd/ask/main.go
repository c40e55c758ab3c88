package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/opencivic/ask311/pkg/duck"
	"github.com/opencivic/ask311/pkg/logger"
	"github.com/opencivic/ask311/pkg/pipeline"
	"github.com/opencivic/ask311/pkg/querier"
	"github.com/opencivic/ask311/pkg/schema"
)

const (
	defaultDBPath = "data/nyc311.duckdb"
	defaultModel  = string(anthropic.ModelClaude3_5Haiku20241022)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose   bool
		dbPath    string
		model     string
		maxTokens int
		showRows  bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about NYC 311 service requests.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			question := strings.Join(args, " ")
			log := logger.New(verbose)

			db, err := duck.Open(dbPath, true)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			p, err := pipeline.New(&pipeline.Config{
				Logger:  log,
				LLM:     pipeline.NewAnthropicLLMClient(log, anthropic.Model(model), int64(maxTokens)),
				Querier: querier.New(log, db),
				Schema:  schema.NewProvider(log, db, time.Minute),
			})
			if err != nil {
				return fmt.Errorf("failed to create pipeline: %w", err)
			}

			res, err := p.Run(cmd.Context(), question)
			if err != nil {
				return err
			}

			fmt.Println(res.AnswerText)
			if res.SQL != "" {
				fmt.Printf("\nSQL: %s\n", res.SQL)
			}
			if res.Err != "" {
				fmt.Printf("\nError: %s\n", res.Err)
			}
			if showRows && len(res.Rows) > 0 {
				fmt.Println()
				renderRows(res.Columns, res.Rows)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")
	cmd.Flags().StringVar(&dbPath, "db", envOr("DB_PATH", defaultDBPath), "path to the duckdb database file (env: DB_PATH)")
	cmd.Flags().StringVar(&model, "model", envOr("ANTHROPIC_MODEL", defaultModel), "anthropic model (env: ANTHROPIC_MODEL)")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 4096, "max tokens per model response")
	cmd.Flags().BoolVar(&showRows, "rows", false, "print the raw result rows as a table")

	return cmd
}

func renderRows(columns []string, rows []map[string]any) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(columns)
	for _, row := range rows {
		vals := make([]string, len(columns))
		for i, col := range columns {
			if row[col] == nil {
				vals[i] = ""
				continue
			}
			vals[i] = fmt.Sprintf("%v", row[col])
		}
		table.Append(vals)
	}
	table.Render()
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
