// Package querier executes validated SQL against the local DuckDB database
// and shapes rows for the pipeline.
package querier

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/opencivic/ask311/pkg/metrics"
	"github.com/opencivic/ask311/pkg/pipeline"
)

// DuckDBQuerier implements pipeline.Querier over a database/sql handle.
type DuckDBQuerier struct {
	db  *sql.DB
	log *slog.Logger
}

func New(log *slog.Logger, db *sql.DB) *DuckDBQuerier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &DuckDBQuerier{db: db, log: log}
}

// Query executes a statement and returns all rows as column-keyed maps. The
// caller is responsible for having validated and row-capped the statement.
func (q *DuckDBQuerier) Query(ctx context.Context, sqlText string) (pipeline.QueryResult, error) {
	start := time.Now()

	rows, err := q.db.QueryContext(ctx, sqlText)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return pipeline.QueryResult{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return pipeline.QueryResult{}, fmt.Errorf("failed to read columns: %w", err)
	}

	result := pipeline.QueryResult{
		Columns: columns,
		Rows:    []map[string]any{},
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			return pipeline.QueryResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return pipeline.QueryResult{}, fmt.Errorf("row iteration failed: %w", err)
	}

	result.Count = len(result.Rows)
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	q.log.Debug("querier: query executed", "rows", result.Count, "duration", time.Since(start))
	return result, nil
}

// normalizeValue makes scanned values JSON-friendly: byte slices become
// strings and timestamps keep a stable wire format.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
