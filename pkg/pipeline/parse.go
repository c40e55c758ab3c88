package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// generateResponse is the JSON document the generation and repair prompts ask
// the model to produce.
type generateResponse struct {
	SQL         string  `json:"sql"`
	Explanation string  `json:"explanation"`
	Confidence  float64 `json:"confidence"`
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// parseGenerateResponse extracts SQL and an explanation from model output.
// Models wrap JSON in prose or markdown fences more often than not, so the
// parse is lenient: a JSON object anywhere in the text wins, then a fenced
// code block, then the raw response if it plausibly is SQL itself.
func parseGenerateResponse(raw string) (sql, explanation string, confidence float64, err error) {
	if doc := extractJSON(raw); doc != "" {
		var resp generateResponse
		if jsonErr := json.Unmarshal([]byte(doc), &resp); jsonErr == nil && resp.SQL != "" {
			return cleanSQL(resp.SQL), strings.TrimSpace(resp.Explanation), resp.Confidence, nil
		}
	}

	if block := extractSQLFromCodeBlocks(raw); block != "" {
		return cleanSQL(block), extractExplanation(raw), 0, nil
	}

	if looksLikeSQL(raw) {
		return cleanSQL(raw), "", 0, nil
	}

	return "", "", 0, fmt.Errorf("no SQL found in model response (%d bytes)", len(raw))
}

// extractJSON returns the first balanced top-level JSON object in s, or "".
// Braces inside string literals do not count toward nesting.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// extractSQLFromCodeBlocks returns the contents of the first fenced code
// block, preferring ```sql fences over anonymous ones.
func extractSQLFromCodeBlocks(s string) string {
	for _, m := range codeBlockRe.FindAllStringSubmatch(s, -1) {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		if looksLikeSQL(body) {
			return body
		}
	}
	return ""
}

func looksLikeSQL(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}

func cleanSQL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}

// extractExplanation returns the prose surrounding fenced code blocks, used
// when the model answered in markdown instead of JSON.
func extractExplanation(s string) string {
	prose := codeBlockRe.ReplaceAllString(s, "")
	prose = strings.TrimSpace(prose)
	if len(prose) > 500 {
		prose = prose[:500]
	}
	return prose
}
