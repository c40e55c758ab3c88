package pipeline

import (
	"context"
	"fmt"
)

// repair asks the model to fix a statement the validator rejected. The budget
// is consumed up front: a repair attempt counts even when the call itself
// fails, otherwise a flaky transport could loop forever.
func (p *Pipeline) repair(ctx context.Context, c *Context) {
	c.RepairCount++
	p.log.Info("pipeline: repairing sql", "attempt", c.RepairCount, "reason", c.SQLError)

	system := buildSchemaPrompt(p.cfg.Prompts.Repair, c.Schema)
	user := fmt.Sprintf(
		"Question: %s\n\nPrevious SQL:\n```sql\n%s\n```\n\nRejection: %s\n\nReturn a corrected query.",
		c.Question, c.GeneratedSQL, c.SQLError)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	raw, err := p.cfg.LLM.Complete(callCtx, system, user)
	if err != nil {
		// The rejection stays in SQLError and the unchanged statement goes
		// back through validation, which rejects it again and either spends
		// another attempt or gives up.
		p.log.Error("pipeline: sql repair call failed", "attempt", c.RepairCount, "error", err)
		return
	}

	sql, explanation, _, err := parseGenerateResponse(raw)
	if err != nil {
		p.log.Error("pipeline: sql repair unparseable", "attempt", c.RepairCount, "error", err)
		return
	}

	c.GeneratedSQL = sql
	if explanation != "" {
		c.SQLExplanation = explanation
	}
	c.SQLError = ""
	p.log.Info("pipeline: sql repaired", "attempt", c.RepairCount, "sql", sql)
}
