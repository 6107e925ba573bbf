package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/quillhq/quill/internal/canvas"
	"github.com/quillhq/quill/internal/history"
	"github.com/quillhq/quill/internal/workspace"
)

func (c *cli) runInit(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("init", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	dir := s.cfg.ProjectDir
	switch len(s.args) {
	case 0:
	case 1:
		dir = s.args[0]
	default:
		return fmt.Errorf("init takes at most one directory")
	}
	proj, err := s.engine.InitProject(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Project %s at %s\n", proj.ID, proj.Path)
	fmt.Fprintf(c.out, "Canvas: %s\n", canvas.Path(proj.Path))
	return nil
}

func (c *cli) runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	leaf := fs.String("leaf", "", "Prompt ID to render up to (default: head)")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	var chain history.Chain
	if *leaf != "" {
		chain, err = s.engine.Checkout(ctx, proj.ID, *leaf)
	} else {
		chain, err = s.engine.Render(ctx, proj.ID, "")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Rendered %d prompts to %s\n",
		len(chain), canvas.Path(proj.Path))
	return nil
}

func (c *cli) runPending(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("pending", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	res, err := s.engine.Pending(ctx, proj.ID)
	if err != nil {
		return err
	}
	writePending(c.out, res)
	return nil
}

// writePending prints a match result: the remainder, preceded by
// a notice when the canvas no longer matches its history.
func writePending(w io.Writer, res canvas.Result) {
	if res.Diverged {
		fmt.Fprintf(w,
			"# canvas diverged at %s after %d matching prompts\n",
			res.DivergedAt, res.Matched)
	}
	fmt.Fprint(w, res.Remainder)
}

func (c *cli) runCommit(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("commit", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	p, err := s.engine.Commit(ctx, proj.ID)
	if errors.Is(err, workspace.ErrNothingPending) {
		fmt.Fprintln(c.out, "Nothing to commit.")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, p.ID)
	return nil
}

func (c *cli) runAnswer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("answer", flag.ContinueOnError)
	promptID := fs.String("prompt", "", "Prompt to answer (default: head)")
	file := fs.String("file", "", "Read the response from this file (default: stdin)")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}

	var data []byte
	if *file != "" && *file != "-" {
		data, err = os.ReadFile(*file)
	} else {
		data, err = io.ReadAll(c.in)
	}
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	response := strings.TrimRight(string(data), "\r\n")

	p, err := s.engine.Answer(ctx, proj.ID, *promptID, response)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Answered %s\n", p.ID)
	return nil
}

func (c *cli) runLog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	tips := fs.Bool("tips", false, "List the last prompt of every branch")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}

	var prompts []history.Prompt
	if *tips {
		prompts, err = s.engine.Tips(ctx, proj.ID)
	} else {
		prompts, err = s.engine.Chain(ctx, proj.ID, "")
	}
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		fmt.Fprintln(c.out, "No prompts yet.")
		return nil
	}
	for _, p := range prompts {
		mark := " "
		if p.ID == proj.Head {
			mark = "*"
		}
		state := ""
		if p.IsPending() {
			state = " (pending)"
		}
		fmt.Fprintf(c.out, "%s %s %s%s\n",
			mark, p.ID, firstLine(p.Request, 60), state)
	}
	return nil
}

func (c *cli) runCheckout(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("checkout", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := exactArgs("checkout", s.args, 1); err != nil {
		return err
	}
	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	chain, err := s.engine.Checkout(ctx, proj.ID, s.args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Head at %s (%d prompts)\n", s.args[0], len(chain))
	return nil
}

func (c *cli) runContext(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("context", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	text, err := s.engine.Context(ctx, proj.ID)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, text)
	return nil
}

func (c *cli) runProjects(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("projects", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	projects, err := s.db.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(c.out, "No projects registered.")
		return nil
	}
	for _, p := range projects {
		head := p.Head
		if head == "" {
			head = "-"
		}
		fmt.Fprintf(c.out, "%-40s %s head=%s\n", p.Path, p.ID, head)
	}
	return nil
}

func (c *cli) runForget(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forget", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	if !*yes {
		msg := fmt.Sprintf(
			"Forget %s and its whole history? The canvas file stays.",
			proj.Path,
		)
		if !confirm(c.in, c.out, msg) {
			fmt.Fprintln(c.out, "Aborted.")
			return nil
		}
	}
	if err := s.db.DeleteProject(proj.ID); err != nil {
		return err
	}
	s.logger.Info("project forgotten", "project", proj.ID, "path", proj.Path)
	fmt.Fprintf(c.out, "Forgot %s\n", proj.Path)
	return nil
}

func (c *cli) runStrict(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("strict", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(s.args) == 0 {
		fmt.Fprintf(c.out, "strict chains: %v\n", s.cfg.StrictChains)
		return nil
	}
	var on bool
	switch strings.ToLower(s.args[0]) {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
	default:
		return fmt.Errorf("strict takes on or off, got %q", s.args[0])
	}
	if err := s.cfg.SaveStrictChains(on); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "strict chains: %v (saved to %s)\n",
		on, filepath.Join(s.cfg.DataDir, "config.json"))
	return nil
}
