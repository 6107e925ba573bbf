package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/quillhq/quill/internal/jsonl"
)

func (c *cli) runImport(ctx context.Context, args []string) error {
	s, err := c.open(flag.NewFlagSet("import", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := exactArgs("import", s.args, 1); err != nil {
		return err
	}
	proj, err := s.project(ctx)
	if err != nil {
		return err
	}

	var r io.Reader = c.in
	if name := s.args[0]; name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	prompts, stats, err := jsonl.Read(r)
	if err != nil {
		return err
	}
	if err := s.engine.Import(ctx, proj.ID, prompts); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Imported %d prompts", stats.Imported)
	if stats.Skipped > 0 {
		fmt.Fprintf(c.out, " (%d lines skipped)", stats.Skipped)
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *cli) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "", "Write to this file instead of stdout")
	s, err := c.open(fs, args)
	if err != nil {
		return err
	}
	defer s.Close()

	proj, err := s.project(ctx)
	if err != nil {
		return err
	}
	prompts, err := s.db.FetchPrompts(ctx, proj.ID)
	if err != nil {
		return err
	}

	if *output == "" || *output == "-" {
		return jsonl.Write(c.out, prompts)
	}
	f, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *output, err)
	}
	if err := jsonl.Write(f, prompts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", *output, err)
	}
	s.logger.Info("history exported",
		"project", proj.ID, "file", *output, "count", len(prompts))
	return nil
}
