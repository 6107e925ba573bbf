// Package timeutil formats timestamps the way the store writes
// them, so stored strings sort chronologically.
package timeutil

import (
	"strings"
	"time"
)

// Layout matches SQLite's strftime('%Y-%m-%dT%H:%M:%fZ').
const Layout = "2006-01-02T15:04:05.000Z"

// Format returns t in UTC using Layout, or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// Normalize parses an RFC 3339 timestamp in any zone and precision
// and reformats it with Layout. Unparseable input yields "".
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return ""
	}
	return Format(t)
}
