package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownTables = []string{"nyc_311"}

func TestValidateAcceptsSimpleSelect(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("SELECT complaint_type, count(*) FROM nyc_311 GROUP BY 1 LIMIT 10", knownTables)
	require.True(t, verdict.OK)
	assert.Equal(t, "SELECT complaint_type, count(*) FROM nyc_311 GROUP BY 1 LIMIT 10", verdict.SQL)
}

func TestValidateInjectsLimit(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("SELECT borough FROM nyc_311", knownTables)
	require.True(t, verdict.OK)
	assert.Equal(t, "SELECT borough FROM nyc_311 LIMIT 1000", verdict.SQL)
}

func TestValidateStripsTrailingSemicolon(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("  SELECT count(*) FROM nyc_311 LIMIT 1;  ", knownTables)
	require.True(t, verdict.OK)
	assert.Equal(t, "SELECT count(*) FROM nyc_311 LIMIT 1", verdict.SQL)
}

func TestValidateAcceptedSQLIsFixedPoint(t *testing.T) {
	v := Validator{}
	first := v.Validate("SELECT borough FROM nyc_311;", knownTables)
	require.True(t, first.OK)

	second := v.Validate(first.SQL, knownTables)
	require.True(t, second.OK)
	assert.Equal(t, first.SQL, second.SQL)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		reason RejectReason
	}{
		{
			name:   "not read only",
			sql:    "DELETE FROM nyc_311 WHERE borough = 'QUEENS'",
			reason: RejectNotReadOnly,
		},
		{
			name: "drop statement rejected as not read only",
			// Rule order is strict: a DROP fails the read-only check before
			// the keyword scan ever runs.
			sql:    "DROP TABLE nyc_311",
			reason: RejectNotReadOnly,
		},
		{
			name:   "forbidden keyword inside select",
			sql:    "SELECT * FROM nyc_311; DROP TABLE nyc_311",
			reason: RejectForbiddenKeyword,
		},
		{
			name:   "forbidden keyword case insensitive",
			sql:    "select * from nyc_311 where 1=1; delete from nyc_311",
			reason: RejectForbiddenKeyword,
		},
		{
			name:   "unknown table",
			sql:    "SELECT * FROM users LIMIT 10",
			reason: RejectUnknownTable,
		},
		{
			name:   "unknown join table",
			sql:    "SELECT * FROM nyc_311 JOIN secrets ON true LIMIT 10",
			reason: RejectUnknownTable,
		},
		{
			name:   "limit exceeds cap",
			sql:    "SELECT * FROM nyc_311 LIMIT 5000",
			reason: RejectLimitExceeded,
		},
		{
			name:   "limit without number",
			sql:    "SELECT * FROM nyc_311 LIMIT all",
			reason: RejectLimitExceeded,
		},
		{
			name:   "unbalanced parens cannot take injected limit",
			sql:    "SELECT count(* FROM nyc_311",
			reason: RejectLimitExceeded,
		},
		{
			name:   "dangling operator cannot take injected limit",
			sql:    "SELECT borough FROM nyc_311 WHERE created_date >",
			reason: RejectLimitExceeded,
		},
		{
			name:   "empty statement",
			sql:    "   ",
			reason: RejectNotReadOnly,
		},
	}

	v := Validator{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := v.Validate(tt.sql, knownTables)
			require.False(t, verdict.OK)
			assert.Equal(t, tt.reason, verdict.Reason)
			assert.Empty(t, verdict.SQL)
			assert.NotEmpty(t, verdict.Detail)
		})
	}
}

func TestValidateAllowsCTENames(t *testing.T) {
	v := Validator{}
	sql := `WITH daily AS (
		SELECT date_trunc('day', created_date) AS d, count(*) AS n
		FROM nyc_311 GROUP BY 1
	)
	SELECT * FROM daily ORDER BY n DESC LIMIT 10`

	verdict := v.Validate(sql, knownTables)
	require.True(t, verdict.OK, "detail: %s", verdict.Detail)
}

func TestValidateAllowsChainedCTEs(t *testing.T) {
	v := Validator{}
	sql := `WITH a AS (SELECT borough FROM nyc_311), b AS (SELECT * FROM a)
	SELECT * FROM b LIMIT 5`

	verdict := v.Validate(sql, knownTables)
	require.True(t, verdict.OK, "detail: %s", verdict.Detail)
}

func TestValidateTableMatchIsCaseInsensitive(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("SELECT * FROM NYC_311 LIMIT 5", knownTables)
	require.True(t, verdict.OK)
}

func TestValidateLimitAtCapIsAccepted(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("SELECT * FROM nyc_311 LIMIT 1000", knownTables)
	require.True(t, verdict.OK)
}

func TestValidateCustomMaxLimit(t *testing.T) {
	v := Validator{MaxLimit: 100}
	verdict := v.Validate("SELECT * FROM nyc_311 LIMIT 500", knownTables)
	require.False(t, verdict.OK)
	assert.Equal(t, RejectLimitExceeded, verdict.Reason)

	verdict = v.Validate("SELECT * FROM nyc_311", knownTables)
	require.True(t, verdict.OK)
	assert.Equal(t, "SELECT * FROM nyc_311 LIMIT 100", verdict.SQL)
}

func TestValidateQuotedStringDoesNotBreakInjection(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("SELECT * FROM nyc_311 WHERE complaint_type = 'Noise (Residential)'", knownTables)
	require.True(t, verdict.OK, "detail: %s", verdict.Detail)
	assert.Equal(t, "SELECT * FROM nyc_311 WHERE complaint_type = 'Noise (Residential)' LIMIT 1000", verdict.SQL)
}

func TestValidateEscapedQuoteInString(t *testing.T) {
	v := Validator{}
	verdict := v.Validate("SELECT * FROM nyc_311 WHERE city = 'O''Neill'", knownTables)
	require.True(t, verdict.OK, "detail: %s", verdict.Detail)
}

func TestInjectionSafe(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"SELECT count(*) FROM nyc_311", true},
		{"SELECT borough,", false},
		{"SELECT (1 + 2", false},
		{"SELECT 'unterminated", false},
		{"SELECT 1 +", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, injectionSafe(tt.sql), "sql: %q", tt.sql)
	}
}
