package canvas

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillhq/quill/internal/history"
)

// FileName is the canvas document kept at the root of every
// project directory.
const FileName = "CANVAS.md"

// FileAccessError reports a canvas document that could not be read
// or written. It wraps the underlying OS error, so
// errors.Is(err, fs.ErrNotExist) still works.
type FileAccessError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("canvas %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// Path returns the canvas location for a project directory.
func Path(projectDir string) string {
	return filepath.Join(projectDir, FileName)
}

// Write renders chain and replaces the document at path with it,
// creating the file and its directory when absent. The text is
// written to a sibling temp file and renamed into place, so a
// concurrent reader sees either the old or the new document.
func Write(path string, chain history.Chain) error {
	return writeFile(path, Render(chain))
}

// Read returns the whole document at path.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &FileAccessError{Op: "read", Path: path, Err: err}
	}
	return string(data), nil
}

// MatchFile reads the document at path and matches it against
// chain. Only a failed read is an error; a diverged canvas is a
// normal Result. The file is never modified.
func MatchFile(path string, chain history.Chain) (Result, error) {
	doc, err := Read(path)
	if err != nil {
		return Result{}, err
	}
	return Match(doc, chain), nil
}

func writeFile(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FileAccessError{Op: "write", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &FileAccessError{Op: "write", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return &FileAccessError{Op: "write", Path: path, Err: err}
	}

	// An existing canvas keeps its permissions.
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	if _, err := tmp.WriteString(text); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &FileAccessError{Op: "write", Path: path, Err: err}
	}
	return nil
}
