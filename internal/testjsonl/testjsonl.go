// Package testjsonl provides JSONL fixture builders for prompt
// history exports. Used by the jsonl and command test packages.
package testjsonl

import (
	"encoding/json"
	"strings"
)

// PromptJSON returns one exported prompt record as a JSON string.
// Empty parent and createdAt are omitted.
func PromptJSON(
	id, parent, request, response, createdAt string,
) string {
	m := map[string]any{
		"id":       id,
		"request":  request,
		"response": response,
	}
	if parent != "" {
		m["parent_id"] = parent
	}
	if createdAt != "" {
		m["created_at"] = createdAt
	}
	return mustMarshal(m)
}

// JoinJSONL joins JSON lines with newlines and appends a
// trailing newline.
func JoinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// HistoryBuilder constructs JSONL export content using a fluent
// API.
type HistoryBuilder struct {
	lines []string
}

// NewHistoryBuilder returns a new empty HistoryBuilder.
func NewHistoryBuilder() *HistoryBuilder {
	return &HistoryBuilder{}
}

// AddPrompt appends a prompt record without a timestamp.
func (b *HistoryBuilder) AddPrompt(
	id, parent, request, response string,
) *HistoryBuilder {
	b.lines = append(b.lines, PromptJSON(id, parent, request, response, ""))
	return b
}

// AddPromptAt appends a prompt record with a created_at stamp.
func (b *HistoryBuilder) AddPromptAt(
	createdAt, id, parent, request, response string,
) *HistoryBuilder {
	b.lines = append(
		b.lines,
		PromptJSON(id, parent, request, response, createdAt),
	)
	return b
}

// AddRaw appends an arbitrary raw line.
func (b *HistoryBuilder) AddRaw(line string) *HistoryBuilder {
	b.lines = append(b.lines, line)
	return b
}

// String returns the JSONL content with a trailing newline.
func (b *HistoryBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// StringNoTrailingNewline returns the JSONL content without a
// trailing newline.
func (b *HistoryBuilder) StringNoTrailingNewline() string {
	return strings.Join(b.lines, "\n")
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
