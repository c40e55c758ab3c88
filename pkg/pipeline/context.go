package pipeline

import (
	"github.com/opencivic/ask311/pkg/schema"
)

// Context is the per-request record threaded through every stage. It is owned
// by the pipeline for the lifetime of one request, mutated in place by each
// stage, and never shared across requests.
type Context struct {
	// RunID correlates all log lines of one request.
	RunID string

	// Question is the user's natural-language question. Immutable once set.
	Question string

	// Schema is the read-only catalog snapshot loaded at START.
	Schema schema.Schema

	// GeneratedSQL is the latest model output, overwritten by each repair
	// attempt. It has not passed the safety validator.
	GeneratedSQL string

	// SQLExplanation is the model's explanation of the query. Advisory only.
	SQLExplanation string

	// ValidatedSQL is set only after the safety validator accepts a
	// statement, and is the only SQL ever handed to the query engine.
	ValidatedSQL string

	// SQLError holds the most recent stage failure: a transport error, a
	// validation rejection, or an engine error. Empty when the last stage
	// succeeded.
	SQLError string

	// ResultColumns and ResultRows are populated only by a successful
	// execution.
	ResultColumns []string
	ResultRows    []map[string]any

	// FinalAnswer is set by the answer stage on every path, success or
	// failure. Never empty at END.
	FinalAnswer string

	// RepairCount is the number of repair attempts consumed. Monotonically
	// non-decreasing, bounded by MaxRepairs.
	RepairCount int
}

// Result is the caller-facing projection of a finished Context.
type Result struct {
	AnswerText string
	SQL        string
	Columns    []string
	Rows       []map[string]any
	// Err is set only when a stage error survived to the end of the
	// pipeline with no usable rows.
	Err string
	// Repairs is the number of repair attempts consumed by this request.
	Repairs int
}

func (c *Context) result() *Result {
	r := &Result{
		AnswerText: c.FinalAnswer,
		SQL:        c.ValidatedSQL,
		Columns:    c.ResultColumns,
		Rows:       c.ResultRows,
		Repairs:    c.RepairCount,
	}
	if r.Columns == nil {
		r.Columns = []string{}
	}
	if r.Rows == nil {
		r.Rows = []map[string]any{}
	}
	if c.SQLError != "" && len(c.ResultRows) == 0 {
		r.Err = c.SQLError
	}
	return r
}
