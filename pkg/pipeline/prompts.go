package pipeline

import (
	"embed"
	"fmt"
)

//go:embed prompts/*.md
var promptFS embed.FS

// Prompts holds the static system prompts for each model-facing stage. The
// embedded defaults ship with the binary; callers may substitute their own.
type Prompts struct {
	Generate    string
	Repair      string
	Answer      string
	AnswerError string
}

// LoadPrompts reads the embedded default prompts.
func LoadPrompts() (*Prompts, error) {
	files := map[string]*string{}
	p := &Prompts{}
	files["prompts/GENERATE.md"] = &p.Generate
	files["prompts/REPAIR.md"] = &p.Repair
	files["prompts/ANSWER.md"] = &p.Answer
	files["prompts/ANSWER_ERROR.md"] = &p.AnswerError

	for name, dst := range files {
		data, err := promptFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded prompt %s: %w", name, err)
		}
		*dst = string(data)
	}
	return p, nil
}
