package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/google/shlex"

	"github.com/quillhq/quill/internal/canvas"
)

func (c *cli) runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.String("debounce", "300ms", "Quiet period before reporting a change")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.out, "Watching %s (Ctrl-C to stop)\n", canvas.Path(proj.Path))
	return s.engine.Watch(ctx, proj.ID, s.cfg.WatchDebounce,
		func(res canvas.Result) {
			fmt.Fprintln(c.out, "--- pending")
			writePending(c.out, res)
		},
	)
}

// editorCommand splits the configured editor command line and
// appends the file to open.
func editorCommand(editor, path string) ([]string, error) {
	argv, err := shlex.Split(editor)
	if err != nil {
		return nil, fmt.Errorf("parsing editor %q: %w", editor, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("no editor configured (set QUILL_EDITOR)")
	}
	return append(argv, path), nil
}

func (c *cli) runEdit(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("edit", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	path := canvas.Path(proj.Path)
	argv, err := editorCommand(s.cfg.Editor, path)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = c.in
	cmd.Stdout = c.errOut
	cmd.Stderr = c.errOut
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running editor: %w", err)
	}

	res, err := s.engine.Pending(ctx, proj.ID)
	if err != nil {
		return err
	}
	writePending(c.out, res)
	return nil
}
