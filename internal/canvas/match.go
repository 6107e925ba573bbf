package canvas

import (
	"strings"

	"github.com/quillhq/quill/internal/history"
)

// Result is the outcome of comparing a canvas against a chain.
type Result struct {
	// Remainder is the unmatched trailing text: the user's new
	// input.
	Remainder string
	// Matched counts the leading nodes whose request and response
	// were both found.
	Matched int
	// Diverged is set when some node was not found. DivergedAt is
	// then the ID of that node.
	Diverged   bool
	DivergedAt string
	// RequestMatched is set when the diverged node's request was
	// found and only its response was not.
	RequestMatched bool
	// Offset is the byte position in the document where the
	// remainder starts.
	Offset int
}

// Match walks chain root first, looking for each request and then
// each response as a literal substring at or after a cursor that
// only moves forward. The first text that cannot be found ends the
// walk: everything from the cursor on is returned as new content,
// and later nodes are not examined. When only a response is
// missing, the remainder starts right after that node's request.
// When every node is found, the remainder is the text after the
// AskMarker line, or everything after the last response when the
// marker was removed.
//
// This detects appended text reliably. Interior edits and
// reordering surface as "everything from here on is new". The
// worst case costs O(len(doc) * len(chain)) comparisons, which is
// fine for single-conversation documents but does not scale to
// large ones.
func Match(doc string, chain history.Chain) Result {
	cursor := 0
	for i, p := range chain {
		next, ok := advance(doc, cursor, p.Request)
		requestFound := ok
		if ok {
			// A found request stays consumed even when its
			// response is missing.
			cursor = next
			next, ok = advance(doc, cursor, p.Response)
		}
		if !ok {
			return Result{
				Remainder:      doc[cursor:],
				Matched:        i,
				Diverged:       true,
				DivergedAt:     p.ID,
				RequestMatched: requestFound,
				Offset:         cursor,
			}
		}
		cursor = next
	}

	if at := strings.Index(doc[cursor:], AskMarker); at >= 0 {
		cursor += at + len(AskMarker)
		if strings.HasPrefix(doc[cursor:], "\n") {
			cursor++
		}
	}
	return Result{
		Remainder: doc[cursor:],
		Matched:   len(chain),
		Offset:    cursor,
	}
}

// advance finds text at or after from and returns the position
// just past it.
func advance(doc string, from int, text string) (int, bool) {
	at := strings.Index(doc[from:], text)
	if at < 0 {
		return from, false
	}
	return from + at + len(text), true
}
