package pipeline

import "context"

// execute runs the validated statement. Only ValidatedSQL ever reaches the
// engine; when validation never accepted a statement this stage short-circuits
// without touching the querier at all.
func (p *Pipeline) execute(ctx context.Context, c *Context) {
	if c.ValidatedSQL == "" {
		if c.SQLError == "" {
			c.SQLError = "no validated SQL to execute"
		}
		p.log.Info("pipeline: skipping execution, no validated sql", "error", c.SQLError)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()

	res, err := p.cfg.Querier.Query(callCtx, c.ValidatedSQL)
	if err != nil {
		ee := &ExecutionError{SQL: c.ValidatedSQL, Err: err}
		c.SQLError = ee.Error()
		p.log.Error("pipeline: query execution failed", "sql", c.ValidatedSQL, "error", err)
		return
	}

	c.ResultColumns = res.Columns
	c.ResultRows = res.Rows
	p.log.Info("pipeline: query executed", "rows", res.Count, "columns", len(res.Columns))
}
