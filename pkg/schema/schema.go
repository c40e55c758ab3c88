// Package schema introspects the DuckDB catalog and caches a read-only
// snapshot of it for the question-answering pipeline.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Column is one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is one table with its columns in catalog order.
type Table struct {
	Name     string   `json:"name"`
	RowCount int64    `json:"row_count"`
	Columns  []Column `json:"columns"`
}

// Schema is an ordered snapshot of the database catalog. It is immutable once
// built; requests share a snapshot without copying.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Empty reports whether the snapshot has no tables.
func (s Schema) Empty() bool { return len(s.Tables) == 0 }

// TableNames returns the table names in catalog order.
func (s Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Format renders the snapshot as readable text for embedding in an LLM
// prompt.
func (s Schema) Format() string {
	var sb strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		if t.RowCount > 0 {
			sb.WriteString(fmt.Sprintf("%s (%d rows):\n", t.Name, t.RowCount))
		} else {
			sb.WriteString(t.Name + ":\n")
		}
		for _, c := range t.Columns {
			sb.WriteString("  - " + c.Name + " (" + c.Type + ")\n")
		}
	}
	return sb.String()
}

// Introspect reads the current catalog from db. Staging tables (raw_ prefix)
// are excluded since the ETL drops them after a successful load anyway.
func Introspect(ctx context.Context, db *sql.DB) (Schema, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'
		  AND table_name NOT LIKE 'raw\_%' ESCAPE '\'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var s Schema
	var current *Table
	for rows.Next() {
		var table, name, typ string
		if err := rows.Scan(&table, &name, &typ); err != nil {
			return Schema{}, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		if current == nil || current.Name != table {
			s.Tables = append(s.Tables, Table{Name: table})
			current = &s.Tables[len(s.Tables)-1]
		}
		current.Columns = append(current.Columns, Column{Name: name, Type: strings.ToUpper(typ)})
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("error iterating catalog rows: %w", err)
	}

	for i := range s.Tables {
		var count int64
		// Table names come from the catalog itself, not from user input.
		err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %q`, s.Tables[i].Name)).Scan(&count)
		if err != nil {
			return Schema{}, fmt.Errorf("failed to count rows of %s: %w", s.Tables[i].Name, err)
		}
		s.Tables[i].RowCount = count
	}

	return s, nil
}
