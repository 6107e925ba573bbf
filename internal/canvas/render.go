// Package canvas mirrors a resolved chain into an editable text
// document and recovers the text a user typed into it.
package canvas

import (
	"strings"

	"github.com/quillhq/quill/internal/history"
)

// Block headers and the line that opens the free-input zone.
const (
	PromptHeader = "# PROMPT "
	OutputHeader = "# OUTPUT "
	AskMarker    = "# ASK MODEL BELOW"
)

// Render serializes chain root first. Each node becomes a request
// block and a response block tagged with the node ID, followed by
// a single AskMarker line. Identical chains render to identical
// bytes.
func Render(chain history.Chain) string {
	var b strings.Builder
	for _, p := range chain {
		writeBlock(&b, PromptHeader, p.ID, p.Request)
		writeBlock(&b, OutputHeader, p.ID, p.Response)
	}
	b.WriteString(AskMarker)
	b.WriteByte('\n')
	return b.String()
}

func writeBlock(b *strings.Builder, header, id, text string) {
	b.WriteString(header)
	b.WriteString(id)
	b.WriteByte('\n')
	b.WriteString(text)
	b.WriteByte('\n')
}
