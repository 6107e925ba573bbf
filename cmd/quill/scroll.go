package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quillhq/quill/internal/history"
)

func (c *cli) runScroll(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("scroll", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	if len(s.args) == 0 {
		return fmt.Errorf("scroll needs a subcommand: add, rm or ls")
	}
	proj, err := s.project(ctx)
	if err != nil {
		return err
	}

	sub, rest := s.args[0], s.args[1:]
	switch sub {
	case "add":
		if len(rest) == 0 {
			return fmt.Errorf("scroll add needs at least one file")
		}
		for _, path := range rest {
			if err := c.addScroll(s, proj.ID, path); err != nil {
				return err
			}
		}
		return nil
	case "rm":
		if err := exactArgs("scroll rm", rest, 1); err != nil {
			return err
		}
		return c.removeScroll(ctx, s, proj.ID, rest[0])
	case "ls":
		return c.listScrolls(ctx, s, proj.ID)
	}
	return fmt.Errorf("unknown scroll subcommand %q", sub)
}

// addScroll attaches the current content of path.
func (c *cli) addScroll(s *session, projectID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("reading scroll: %w", err)
	}
	sc, err := s.db.AppendScroll(history.Scroll{
		ProjectID: projectID,
		Source:    abs,
		Content:   string(data),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", sc.ID, abs)
	return nil
}

func (c *cli) removeScroll(
	ctx context.Context, s *session, projectID, id string,
) error {
	scrolls, err := s.db.FetchScrolls(ctx, projectID)
	if err != nil {
		return err
	}
	for _, sc := range scrolls {
		if sc.ID == id {
			if err := s.db.DeleteScroll(id); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Detached %s\n", sc.Source)
			return nil
		}
	}
	return fmt.Errorf("scroll %s not found in this project", id)
}

func (c *cli) listScrolls(
	ctx context.Context, s *session, projectID string,
) error {
	scrolls, err := s.db.FetchScrolls(ctx, projectID)
	if err != nil {
		return err
	}
	if len(scrolls) == 0 {
		fmt.Fprintln(c.out, "No scrolls attached.")
		return nil
	}
	for _, sc := range scrolls {
		fmt.Fprintf(c.out, "%s %s (%d bytes)\n",
			sc.ID, sc.Source, len(sc.Content))
	}
	return nil
}
