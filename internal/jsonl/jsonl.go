// Package jsonl moves prompt history in and out of the store as
// one JSON record per line.
package jsonl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/quillhq/quill/internal/history"
	"github.com/quillhq/quill/internal/timeutil"
)

// Record is the exported form of a prompt. Project membership is
// not part of it; importing assigns the target project.
type Record struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id,omitempty"`
	Request   string `json:"request"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Stats describes an import.
type Stats struct {
	Imported int
	// Skipped counts non-blank lines that were not valid JSON,
	// lacked an id, or were too long.
	Skipped int
}

// Read parses prompt records from r. Malformed lines are skipped
// and counted; only a failing reader is an error. Timestamps are
// normalized to the store's layout, and unparseable ones dropped.
func Read(r io.Reader) ([]history.Prompt, Stats, error) {
	lr := newLineReader(r, maxLineSize)
	var (
		out   []history.Prompt
		stats Stats
	)
	for {
		line, ok, err := lr.next()
		if err != nil {
			return nil, stats, fmt.Errorf("reading records: %w", err)
		}
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !gjson.Valid(line) {
			stats.Skipped++
			continue
		}
		id := gjson.Get(line, "id").Str
		if id == "" {
			stats.Skipped++
			continue
		}
		out = append(out, history.Prompt{
			ID:        id,
			ParentID:  gjson.Get(line, "parent_id").Str,
			Request:   gjson.Get(line, "request").Str,
			Response:  gjson.Get(line, "response").Str,
			CreatedAt: timeutil.Normalize(gjson.Get(line, "created_at").Str),
		})
	}
	stats.Imported = len(out)
	stats.Skipped += lr.skipped
	return out, stats, nil
}

// Write encodes prompts to w in the order given, one record per
// line.
func Write(w io.Writer, prompts []history.Prompt) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, p := range prompts {
		if err := enc.Encode(Record{
			ID:        p.ID,
			ParentID:  p.ParentID,
			Request:   p.Request,
			Response:  p.Response,
			CreatedAt: p.CreatedAt,
		}); err != nil {
			return fmt.Errorf("writing record %s: %w", p.ID, err)
		}
	}
	return nil
}
