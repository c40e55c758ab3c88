package pipeline

import (
	"context"
	"fmt"
	"strings"
)

const fallbackAnswer = "I wasn't able to produce an answer for that question. Please try rephrasing it."

// answer turns whatever the pipeline ended up with, rows or an error, into
// prose. It is the one stage that cannot fail: model, template and fixed
// string form a fallback chain, so FinalAnswer is never empty.
func (p *Pipeline) answer(ctx context.Context, c *Context) {
	defer func() {
		if strings.TrimSpace(c.FinalAnswer) == "" {
			c.FinalAnswer = fallbackAnswer
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.AnswerTimeout)
	defer cancel()

	if c.SQLError != "" && len(c.ResultRows) == 0 {
		c.FinalAnswer = p.answerFromError(callCtx, c)
		return
	}
	c.FinalAnswer = p.answerFromResults(callCtx, c)
}

// answerFromError explains a failed request in plain language. Falls back to
// a template that embeds the raw error when the model is unavailable too.
func (p *Pipeline) answerFromError(ctx context.Context, c *Context) string {
	user := fmt.Sprintf("Question: %s\n\nError: %s", c.Question, c.SQLError)
	if c.GeneratedSQL != "" {
		user += fmt.Sprintf("\n\nAttempted SQL:\n```sql\n%s\n```", c.GeneratedSQL)
	}

	raw, err := p.cfg.LLM.Complete(ctx, p.cfg.Prompts.AnswerError, user)
	if err != nil || strings.TrimSpace(raw) == "" {
		p.log.Error("pipeline: error-answer synthesis failed", "error", err)
		return fmt.Sprintf("I couldn't answer that question. The query failed with: %s", c.SQLError)
	}
	return strings.TrimSpace(raw)
}

// answerFromResults summarizes the result set. At most SampleRows rows are
// shown to the model; the full set still goes back to the caller untouched.
func (p *Pipeline) answerFromResults(ctx context.Context, c *Context) string {
	sample := c.ResultRows
	truncated := false
	if len(sample) > p.cfg.SampleRows {
		sample = sample[:p.cfg.SampleRows]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSQL:\n```sql\n%s\n```\n\n", c.Question, c.ValidatedSQL)
	fmt.Fprintf(&b, "Result (%d rows", len(c.ResultRows))
	if truncated {
		fmt.Fprintf(&b, ", first %d shown", len(sample))
	}
	b.WriteString("):\n")
	b.WriteString(formatResultsForPrompt(c.ResultColumns, sample))

	raw, err := p.cfg.LLM.Complete(ctx, p.cfg.Prompts.Answer, b.String())
	if err != nil || strings.TrimSpace(raw) == "" {
		p.log.Error("pipeline: answer synthesis failed", "error", err)
		return fmt.Sprintf("The query ran successfully and returned %d rows across %d columns (%s).",
			len(c.ResultRows), len(c.ResultColumns), strings.Join(c.ResultColumns, ", "))
	}
	return strings.TrimSpace(raw)
}

// formatResultsForPrompt renders rows as pipe-separated lines, compact enough
// to keep token spend predictable.
func formatResultsForPrompt(columns []string, rows []map[string]any) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteByte('\n')
	for _, row := range rows {
		vals := make([]string, len(columns))
		for i, col := range columns {
			vals[i] = formatValueForLLM(row[col])
		}
		b.WriteString(strings.Join(vals, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatValueForLLM(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.4f", x)
	case float32:
		return formatValueForLLM(float64(x))
	default:
		return fmt.Sprintf("%v", v)
	}
}
