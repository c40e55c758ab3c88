// Package etl loads the NYC 311 service-request CSV export into DuckDB and
// normalizes it into the nyc_311 table the pipeline queries.
package etl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	rawTable   = "raw_nyc_311"
	finalTable = "nyc_311"

	// The Socrata export writes timestamps like "06/01/2024 12:30:00 PM".
	csvTimeFormat = "%m/%d/%Y %I:%M:%S %p"
)

// Loader ingests a CSV export into the database.
type Loader struct {
	db  *sql.DB
	log *slog.Logger
}

func NewLoader(log *slog.Logger, db *sql.DB) *Loader {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Loader{db: db, log: log}
}

// Load reads csvPath into a raw staging table, rewrites it into the cleaned
// nyc_311 table and drops the staging table. Idempotent: rerunning replaces
// the final table.
func (l *Loader) Load(ctx context.Context, csvPath string) error {
	start := time.Now()
	l.log.Info("etl: loading csv", "path", csvPath)

	// Everything lands as VARCHAR first; typing happens in the rewrite where
	// TRY_CAST turns malformed values into NULLs instead of failing the load.
	stage := fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s, all_varchar=true, header=true)`,
		rawTable, quoteString(csvPath))
	if _, err := l.db.ExecContext(ctx, stage); err != nil {
		return fmt.Errorf("failed to stage csv: %w", err)
	}

	rawColumns, err := l.tableColumns(ctx, rawTable)
	if err != nil {
		return err
	}
	if len(rawColumns) == 0 {
		return fmt.Errorf("staging table %s has no columns", rawTable)
	}

	rewrite := buildRewriteSQL(rawColumns)
	if _, err := l.db.ExecContext(ctx, rewrite); err != nil {
		return fmt.Errorf("failed to build %s: %w", finalTable, err)
	}

	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, rawTable)); err != nil {
		return fmt.Errorf("failed to drop staging table: %w", err)
	}

	var count int64
	if err := l.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, finalTable)).Scan(&count); err != nil {
		return fmt.Errorf("failed to count loaded rows: %w", err)
	}

	l.log.Info("etl: load complete", "rows", count, "duration", time.Since(start))
	return nil
}

func (l *Loader) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// buildRewriteSQL produces the CREATE TABLE AS statement that renames every
// raw column to snake_case and casts the typed ones.
func buildRewriteSQL(rawColumns []string) string {
	exprs := make([]string, 0, len(rawColumns)+1)
	hasCreated, hasClosed := false, false

	for _, raw := range rawColumns {
		name := normalizeColumnName(raw)
		quoted := quoteIdent(raw)

		var expr string
		switch {
		case dateColumns[name]:
			expr = fmt.Sprintf("TRY_STRPTIME(%s, '%s') AS %s", quoted, csvTimeFormat, name)
		case doubleColumns[name]:
			expr = fmt.Sprintf("TRY_CAST(%s AS DOUBLE) AS %s", quoted, name)
		case bigintColumns[name]:
			expr = fmt.Sprintf("TRY_CAST(%s AS BIGINT) AS %s", quoted, name)
		default:
			expr = fmt.Sprintf("%s AS %s", quoted, name)
		}
		exprs = append(exprs, expr)

		hasCreated = hasCreated || name == "created_date"
		hasClosed = hasClosed || name == "closed_date"
	}

	if hasCreated && hasClosed {
		exprs = append(exprs, fmt.Sprintf(
			"date_diff('day', TRY_STRPTIME(%s, '%s'), TRY_STRPTIME(%s, '%s')) AS time_to_close_days",
			quoteIdent("Created Date"), csvTimeFormat, quoteIdent("Closed Date"), csvTimeFormat))
	}

	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT %s FROM %s",
		finalTable, strings.Join(exprs, ", "), rawTable)
}

var dateColumns = map[string]bool{
	"created_date":                   true,
	"closed_date":                    true,
	"due_date":                       true,
	"resolution_action_updated_date": true,
}

var doubleColumns = map[string]bool{
	"latitude":                 true,
	"longitude":                true,
	"x_coordinate_state_plane": true,
	"y_coordinate_state_plane": true,
}

var bigintColumns = map[string]bool{
	"unique_key": true,
}

// normalizeColumnName turns a CSV header like "Complaint Type" or
// "Location Type (Secondary)" into a snake_case identifier.
func normalizeColumnName(raw string) string {
	var b strings.Builder
	lastUnderscore := true // suppress leading underscores
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
