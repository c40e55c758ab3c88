package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxLimit is the row cap enforced on every statement.
const DefaultMaxLimit = 1000

// RejectReason identifies why the safety validator refused a statement.
type RejectReason string

const (
	RejectNotReadOnly      RejectReason = "REJECT_NOT_READ_ONLY"
	RejectForbiddenKeyword RejectReason = "REJECT_FORBIDDEN_KEYWORD"
	RejectUnknownTable     RejectReason = "REJECT_UNKNOWN_TABLE"
	RejectLimitExceeded    RejectReason = "REJECT_LIMIT_EXCEEDED"
)

// Verdict is the outcome of validating one statement.
type Verdict struct {
	OK     bool
	SQL    string // normalized statement, set when OK
	Reason RejectReason
	Detail string
}

// Validator is the static safety policy applied to every generated statement
// before it may reach the query engine. Validate is deterministic and
// side-effect free, so the repair loop can re-run it at zero cost and unit
// tests need neither an LLM nor a database.
//
// Table references are extracted with a token scan after FROM/JOIN rather
// than a full SQL parse. CTE names introduced by WITH ... AS ( are treated as
// known tables.
type Validator struct {
	MaxLimit int // defaults to DefaultMaxLimit when zero
}

var (
	forbiddenRe = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|ATTACH|COPY|PRAGMA|EXEC)\b`)
	tableRefRe  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	cteRe       = regexp.MustCompile(`(?i)(?:\bWITH\s+(?:RECURSIVE\s+)?|,\s*)([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)
	limitNumRe  = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)`)
	limitKwRe   = regexp.MustCompile(`(?i)\bLIMIT\b`)
)

// Validate checks sqlText against the safety policy. Rules apply in order and
// the first failure wins. On acceptance the returned SQL is normalized
// (trimmed, trailing semicolon stripped, LIMIT injected when missing) and is
// a fixed point: validating it again yields the identical statement.
func (v Validator) Validate(sqlText string, knownTables []string) Verdict {
	maxLimit := v.MaxLimit
	if maxLimit == 0 {
		maxLimit = DefaultMaxLimit
	}

	s := strings.TrimSpace(sqlText)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)

	// Rule 1: read-only statements only.
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return rejectVerdict(RejectNotReadOnly, "statement must start with SELECT or WITH")
	}

	// Rule 2: no DDL/DML keywords anywhere in the statement.
	if m := forbiddenRe.FindString(s); m != "" {
		return rejectVerdict(RejectForbiddenKeyword, "forbidden keyword "+strings.ToUpper(m))
	}

	// Rule 3: every referenced table must be a known table or a CTE name.
	known := make(map[string]bool, len(knownTables))
	for _, t := range knownTables {
		known[strings.ToLower(t)] = true
	}
	for _, m := range cteRe.FindAllStringSubmatch(s, -1) {
		known[strings.ToLower(m[1])] = true
	}
	for _, m := range tableRefRe.FindAllStringSubmatch(s, -1) {
		if !known[strings.ToLower(m[1])] {
			return rejectVerdict(RejectUnknownTable, "unknown table "+m[1])
		}
	}

	// Rule 4: row cap. An explicit LIMIT must be within the cap; a missing
	// LIMIT is injected when the statement is structurally complete.
	if m := limitNumRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n > maxLimit {
			return rejectVerdict(RejectLimitExceeded, fmt.Sprintf("LIMIT %s exceeds maximum of %d", m[1], maxLimit))
		}
		return Verdict{OK: true, SQL: s}
	}
	if limitKwRe.MatchString(s) {
		return rejectVerdict(RejectLimitExceeded, "LIMIT clause is not a plain number")
	}
	if !injectionSafe(s) {
		return rejectVerdict(RejectLimitExceeded, "statement is structurally incomplete, cannot inject LIMIT")
	}
	return Verdict{OK: true, SQL: fmt.Sprintf("%s LIMIT %d", s, maxLimit)}
}

func rejectVerdict(reason RejectReason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// injectionSafe reports whether appending a LIMIT clause to s yields a
// well-formed statement: parentheses balanced outside string literals and no
// dangling expression at the end.
func injectionSafe(s string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			if ch == '\'' {
				inString = false
			}
			continue
		}
		switch ch {
		case '\'':
			inString = true
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	if inString || depth != 0 {
		return false
	}

	trimmed := strings.TrimRight(s, " \t\r\n")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case ',', '(', '+', '-', '*', '/', '=', '<', '>', '.':
		return false
	}
	return true
}

// validate is the VALIDATE stage: pure and synchronous, it never suspends.
func (p *Pipeline) validate(c *Context) {
	// A failed generation leaves nothing to check. Keep the transport error
	// instead of masking it with a rejection of the empty string.
	if strings.TrimSpace(c.GeneratedSQL) == "" && c.SQLError != "" {
		return
	}

	v := p.validator.Validate(c.GeneratedSQL, c.Schema.TableNames())
	if v.OK {
		c.ValidatedSQL = v.SQL
		c.SQLError = ""
		p.log.Info("pipeline: sql validated", "sql", v.SQL)
		return
	}

	rej := &ValidationRejection{Reason: v.Reason, Detail: v.Detail}
	c.SQLError = rej.Error()
	p.log.Info("pipeline: sql rejected", "reason", string(v.Reason), "detail", v.Detail, "repairs", c.RepairCount)
}
