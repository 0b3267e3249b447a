package tools

import (
	"context"
	"encoding/json"
	"unicode/utf8"
)

// Tool is the interface for all built-in search tools.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool arguments, fed verbatim to
	// the LLM as the function parameters.
	Schema() json.RawMessage
	Run(ctx context.Context, args json.RawMessage) (string, error)
}

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// querySchema is shared by the tools that take a single search query string.
var querySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "The search query"}
	},
	"required": ["query"]
}`)

type queryArgs struct {
	Query string `json:"query"`
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
