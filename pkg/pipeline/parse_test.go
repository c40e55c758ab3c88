package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenerateResponseJSON(t *testing.T) {
	raw := `{"sql": "SELECT count(*) FROM nyc_311;", "explanation": "counts all rows", "confidence": 0.95}`

	sql, explanation, confidence, err := parseGenerateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM nyc_311", sql)
	assert.Equal(t, "counts all rows", explanation)
	assert.Equal(t, 0.95, confidence)
}

func TestParseGenerateResponseJSONWithProse(t *testing.T) {
	raw := "Here is the query you asked for:\n\n" +
		`{"sql": "SELECT borough FROM nyc_311 LIMIT 5", "explanation": "lists boroughs", "confidence": 0.8}` +
		"\n\nLet me know if you need anything else."

	sql, explanation, _, err := parseGenerateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT borough FROM nyc_311 LIMIT 5", sql)
	assert.Equal(t, "lists boroughs", explanation)
}

func TestParseGenerateResponseJSONInFence(t *testing.T) {
	raw := "```json\n{\"sql\": \"SELECT 1\", \"explanation\": \"trivial\", \"confidence\": 1}\n```"

	sql, _, _, err := parseGenerateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
}

func TestParseGenerateResponseSQLCodeBlock(t *testing.T) {
	raw := "Sure, here you go:\n\n```sql\nSELECT complaint_type, count(*) AS n\nFROM nyc_311\nGROUP BY 1\nLIMIT 10;\n```\nThis groups complaints by type."

	sql, explanation, _, err := parseGenerateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT complaint_type, count(*) AS n\nFROM nyc_311\nGROUP BY 1\nLIMIT 10", sql)
	assert.Contains(t, explanation, "groups complaints by type")
}

func TestParseGenerateResponseBareSQL(t *testing.T) {
	raw := "  SELECT count(*) FROM nyc_311  "

	sql, _, _, err := parseGenerateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT count(*) FROM nyc_311", sql)
}

func TestParseGenerateResponseNoSQL(t *testing.T) {
	_, _, _, err := parseGenerateResponse("I cannot help with that request.")
	require.Error(t, err)
}

func TestParseGenerateResponseEmptyJSONFallsThrough(t *testing.T) {
	// A JSON object without a sql field should not mask a usable code block.
	raw := "{\"note\": \"see below\"}\n```sql\nSELECT 1\n```"

	sql, _, _, err := parseGenerateResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
}

func TestExtractJSONBracesInStrings(t *testing.T) {
	raw := `{"sql": "SELECT '{' FROM nyc_311", "explanation": "odd literal", "confidence": 0.5}`
	assert.Equal(t, raw, extractJSON(raw))
}

func TestExtractJSONNone(t *testing.T) {
	assert.Empty(t, extractJSON("no objects here"))
	assert.Empty(t, extractJSON("{unterminated"))
}
