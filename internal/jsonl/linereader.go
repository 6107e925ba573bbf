package jsonl

import (
	"bufio"
	"io"
)

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 16 * 1024 * 1024
)

// lineReader yields non-blank lines, skipping any longer than
// maxLen instead of failing the whole read.
type lineReader struct {
	r      *bufio.Reader
	maxLen int
	buf    []byte
	// skipped counts oversized lines.
	skipped int
}

func newLineReader(r io.Reader, maxLen int) *lineReader {
	return &lineReader{
		r:      bufio.NewReaderSize(r, initialBufSize),
		maxLen: maxLen,
		buf:    make([]byte, 0, initialBufSize),
	}
}

// next returns the next line without its newline, or false at
// EOF. A read failure other than EOF is returned as err.
func (lr *lineReader) next() (line string, ok bool, err error) {
	for {
		line, err := lr.readLine()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		if line != "" {
			return line, true, nil
		}
	}
}

func (lr *lineReader) readLine() (string, error) {
	lr.buf = lr.buf[:0]
	oversized := false

	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if err == io.EOF && len(lr.buf) > 0 {
				break
			}
			return "", err
		}
		if oversized {
			if !isPrefix {
				return "", nil
			}
			continue
		}

		lr.buf = append(lr.buf, chunk...)
		if len(lr.buf) > lr.maxLen {
			oversized = true
			lr.skipped++
			lr.buf = lr.buf[:0]
			if !isPrefix {
				return "", nil
			}
			continue
		}
		if !isPrefix {
			break
		}
	}
	return string(lr.buf), nil
}
