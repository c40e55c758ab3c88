// Package pipeline turns a natural-language question about the loaded dataset
// into a validated SQL query and a natural-language answer. It is an explicit
// finite-state machine: generate, validate, conditionally repair (bounded),
// execute, answer. No stage failure aborts a request; errors are absorbed
// into the per-request context and the answer stage always produces text.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opencivic/ask311/pkg/schema"
)

// MaxRepairs is the repair budget: the maximum number of automated SQL-fix
// attempts before the pipeline gives up and surfaces the error.
const MaxRepairs = 2

// LLMClient is the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Querier executes SQL queries that have passed the safety validator.
type Querier interface {
	Query(ctx context.Context, sql string) (QueryResult, error)
}

// SchemaFetcher retrieves the database schema snapshot.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) (schema.Schema, error)
}

// QueryResult holds the result of a SQL query.
type QueryResult struct {
	Columns []string
	Rows    []map[string]any
	Count   int
}

// Runner is the interface consumed by the HTTP layer and the CLI.
type Runner interface {
	Run(ctx context.Context, question string) (*Result, error)
}

// Config holds the configuration for the pipeline.
type Config struct {
	Logger  *slog.Logger
	LLM     LLMClient
	Querier Querier
	Schema  SchemaFetcher
	Prompts *Prompts // embedded defaults are loaded when nil

	MaxRepairs int // repair budget (default MaxRepairs)
	MaxLimit   int // row cap enforced by the validator (default 1000)
	SampleRows int // result rows shown to the LLM (default 50)

	GenerateTimeout time.Duration // deadline per generation/repair call (default 60s)
	QueryTimeout    time.Duration // deadline for query execution (default 30s)
	AnswerTimeout   time.Duration // deadline for answer synthesis (default 60s)
}

// Pipeline drives the state machine. Safe for concurrent use: each Run owns
// its Context exclusively and the configured ports must support concurrent
// independent calls.
type Pipeline struct {
	cfg       *Config
	log       *slog.Logger
	validator Validator
}

// New creates a new Pipeline.
func New(cfg *Config) (*Pipeline, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if cfg.Querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("schema fetcher is required")
	}
	if cfg.Prompts == nil {
		prompts, err := LoadPrompts()
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		cfg.Prompts = prompts
	}
	if cfg.MaxRepairs == 0 {
		cfg.MaxRepairs = MaxRepairs
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.SampleRows == 0 {
		cfg.SampleRows = 50
	}
	if cfg.GenerateTimeout == 0 {
		cfg.GenerateTimeout = 60 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.AnswerTimeout == 0 {
		cfg.AnswerTimeout = 60 * time.Second
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		cfg:       cfg,
		log:       log,
		validator: Validator{MaxLimit: cfg.MaxLimit},
	}, nil
}

// state is one node of the pipeline state machine.
type state int

const (
	stateStart state = iota
	stateGenerate
	stateValidate
	stateRepair
	stateExecute
	stateAnswer
	stateEnd
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateGenerate:
		return "generate"
	case stateValidate:
		return "validate"
	case stateRepair:
		return "repair"
	case stateExecute:
		return "execute"
	case stateAnswer:
		return "answer"
	case stateEnd:
		return "end"
	}
	return "unknown"
}

// Run executes the state machine for one question and returns the finished
// context projected into a Result. The returned Result always carries a
// non-empty answer.
func (p *Pipeline) Run(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	c := &Context{RunID: uuid.NewString(), Question: question}
	p.log.Info("pipeline: run started", "run_id", c.RunID, "question", question)

	for s := stateStart; s != stateEnd; {
		if err := ctx.Err(); err != nil && s != stateAnswer {
			// Abandon remaining transitions, but the request still gets an
			// answer. In-flight external calls complete and are discarded.
			p.log.Info("pipeline: request cancelled, skipping to answer", "state", s.String())
			if c.SQLError == "" && len(c.ResultColumns) == 0 {
				c.SQLError = "request cancelled: " + err.Error()
			}
			s = stateAnswer
		}
		p.runStage(ctx, s, c)
		s = next(s, c, p.cfg.MaxRepairs)
	}

	p.log.Info("pipeline: run finished",
		"run_id", c.RunID,
		"sql", c.ValidatedSQL,
		"rows", len(c.ResultRows),
		"repairs", c.RepairCount,
		"error", c.SQLError)
	return c.result(), nil
}

func (p *Pipeline) runStage(ctx context.Context, s state, c *Context) {
	switch s {
	case stateStart:
		p.start(ctx, c)
	case stateGenerate:
		p.generate(ctx, c)
	case stateValidate:
		p.validate(c)
	case stateRepair:
		p.repair(ctx, c)
	case stateExecute:
		p.execute(ctx, c)
	case stateAnswer:
		p.answer(ctx, c)
	}
}

// next is the pure transition function of the state machine. The
// VALIDATE<->REPAIR cycle is the only cycle; it terminates because
// RepairCount strictly increases on every REPAIR visit and the budget is
// finite. Once the budget is spent, a rejected statement routes to EXECUTE,
// which short-circuits without touching the engine.
func next(s state, c *Context, maxRepairs int) state {
	switch s {
	case stateStart:
		return stateGenerate
	case stateGenerate:
		return stateValidate
	case stateValidate:
		if c.ValidatedSQL != "" {
			return stateExecute
		}
		if c.RepairCount < maxRepairs {
			return stateRepair
		}
		return stateExecute
	case stateRepair:
		return stateValidate
	case stateExecute:
		return stateAnswer
	default:
		return stateEnd
	}
}

// start loads the schema snapshot for the request.
func (p *Pipeline) start(ctx context.Context, c *Context) {
	s, err := p.cfg.Schema.FetchSchema(ctx)
	if err != nil {
		// A schema failure degrades the request instead of aborting it: the
		// validator rejects table references against an empty table set and
		// the answer stage reports the error.
		p.log.Error("pipeline: schema load failed", "error", err)
		c.SQLError = "schema_load_failed: " + err.Error()
		return
	}
	c.Schema = s
	p.log.Debug("pipeline: schema loaded", "tables", len(s.Tables))
}
