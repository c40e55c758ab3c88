package pipeline

import (
	"context"
	"fmt"

	"github.com/opencivic/ask311/pkg/schema"
)

// generate asks the model for a first SQL draft. A fresh generation always
// clears previous SQL state so a stale draft can never leak into validation.
func (p *Pipeline) generate(ctx context.Context, c *Context) {
	c.GeneratedSQL = ""
	c.SQLExplanation = ""
	c.SQLError = ""

	system := buildSchemaPrompt(p.cfg.Prompts.Generate, c.Schema)
	user := fmt.Sprintf("Question: %s", c.Question)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	raw, err := p.cfg.LLM.Complete(callCtx, system, user)
	if err != nil {
		te := &TransportError{Op: "generation_failed", Err: err}
		c.SQLError = te.Error()
		p.log.Error("pipeline: sql generation failed", "error", err)
		return
	}

	sql, explanation, confidence, err := parseGenerateResponse(raw)
	if err != nil {
		c.SQLError = newParseError("generation_failed", err).Error()
		p.log.Error("pipeline: sql generation unparseable", "error", err)
		return
	}

	c.GeneratedSQL = sql
	c.SQLExplanation = explanation
	p.log.Info("pipeline: sql generated", "sql", sql, "confidence", confidence)
}

// buildSchemaPrompt appends the live schema snapshot to a static prompt so
// the model sees real table names, column types and row counts.
func buildSchemaPrompt(static string, s schema.Schema) string {
	if s.Empty() {
		return static
	}
	return static + "\n\n## Database Schema\n\n```\n" + s.Format() + "```"
}
