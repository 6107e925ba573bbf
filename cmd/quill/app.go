package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/db"
	"github.com/quillhq/quill/internal/history"
	"github.com/quillhq/quill/internal/workspace"
)

// cli carries the process streams so commands can run against
// buffers in tests.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (c *cli) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "init":
		return c.runInit(ctx, args)
	case "render":
		return c.runRender(ctx, args)
	case "pending":
		return c.runPending(ctx, args)
	case "commit":
		return c.runCommit(ctx, args)
	case "answer":
		return c.runAnswer(ctx, args)
	case "log":
		return c.runLog(ctx, args)
	case "checkout":
		return c.runCheckout(ctx, args)
	case "rm":
		return c.runRemove(ctx, args)
	case "scroll":
		return c.runScroll(ctx, args)
	case "context":
		return c.runContext(ctx, args)
	case "import":
		return c.runImport(ctx, args)
	case "export":
		return c.runExport(ctx, args)
	case "watch":
		return c.runWatch(ctx, args)
	case "edit":
		return c.runEdit(ctx, args)
	case "projects":
		return c.runProjects(ctx, args)
	case "forget":
		return c.runForget(ctx, args)
	case "strict":
		return c.runStrict(ctx, args)
	}
	return fmt.Errorf("unknown command %q (run quill help)", name)
}

// session is the state one command runs against.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	db     *db.DB
	engine *workspace.Engine
	// args are the positional arguments left after flags.
	args     []string
	closeLog func() error
}

func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.closeLog != nil {
		s.closeLog()
	}
}

// open parses the command line on fs, which may already carry
// command-specific flags, and opens the store.
func (c *cli) open(fs *flag.FlagSet, args []string) (*session, error) {
	fs.SetOutput(c.errOut)
	config.RegisterFlags(fs)
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	stored, err := database.CheckVersion(version)
	switch {
	case errors.Is(err, db.ErrNewerVersion):
		logger.Warn("database was written by a newer quill",
			"stored", stored, "running", version)
	case err != nil:
		database.Close()
		closeLog()
		return nil, err
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		db:     database,
		engine: workspace.NewEngine(
			database, logger, workspace.WithStrict(cfg.StrictChains),
		),
		args:     pos,
		closeLog: closeLog,
	}, nil
}

// project returns the project for the configured directory.
func (s *session) project(ctx context.Context) (history.Project, error) {
	p, err := s.engine.Project(ctx, s.cfg.ProjectDir)
	if errors.Is(err, db.ErrNotFound) {
		return p, fmt.Errorf(
			"%s is not a quill project (run quill init)",
			s.cfg.ProjectDir,
		)
	}
	return p, err
}

// parseInterspersed parses flags that may appear before or after
// positional arguments, which flag.FlagSet alone stops at.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return pos, nil
		}
		pos = append(pos, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

// exactArgs checks the positional argument count.
func exactArgs(name string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf(
			"%s takes %d argument(s), got %d", name, n, len(args),
		)
	}
	return nil
}

func confirm(r io.Reader, w io.Writer, msg string) bool {
	fmt.Fprintf(w, "%s [y/N] ", msg)
	scanner := bufio.NewScanner(r)
	scanner.Scan()
	ans := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return ans == "y" || ans == "yes"
}

// firstLine returns the first line of s, cut to n runes.
func firstLine(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
