package history

import (
	"path/filepath"
	"strings"
)

// ScrollHeader prefixes every scroll in the preamble.
const ScrollHeader = "# SCROLL "

// BuildContext concatenates scrolls in the order given, each one
// introduced by a header naming the last element of its source
// path. Nothing is reordered or deduplicated.
func BuildContext(scrolls []Scroll) string {
	var b strings.Builder
	for _, s := range scrolls {
		b.WriteString(ScrollHeader)
		b.WriteString(filepath.Base(s.Source))
		b.WriteByte('\n')
		b.WriteString(s.Content)
		if !strings.HasSuffix(s.Content, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
