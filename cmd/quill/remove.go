package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/quillhq/quill/internal/history"
)

func (c *cli) runRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	yes := fs.Bool("yes", false, "Skip confirmation prompt")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := exactArgs("rm", s.args, 1); err != nil {
		return err
	}
	id := s.args[0]
	proj, err := s.project(ctx)
	if err != nil {
		return err
	}

	snapshot, err := s.db.FetchPrompts(ctx, proj.ID)
	if err != nil {
		return err
	}
	idx := history.NewIndex(snapshot)
	victim, ok := idx.Get(id)
	if !ok {
		return fmt.Errorf("prompt %s not found in %s", id, proj.Path)
	}
	doomed := idx.Descendants(id)

	fmt.Fprintf(c.out, "%s %s\n", victim.ID, firstLine(victim.Request, 60))
	if n := len(doomed) - 1; n > 0 {
		fmt.Fprintf(c.out, "  and %d descendant prompts\n", n)
	}
	if !*yes {
		msg := fmt.Sprintf("Delete %d prompts?", len(doomed))
		if !confirm(c.in, c.out, msg) {
			fmt.Fprintln(c.out, "Aborted.")
			return nil
		}
	}

	deleted, err := s.engine.Remove(ctx, proj.ID, id)
	if err != nil {
		return fmt.Errorf("deleting prompts: %w", err)
	}
	fmt.Fprintf(c.out, "Deleted %d prompts\n", len(deleted))
	return nil
}
