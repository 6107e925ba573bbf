// Package workspace ties the record store to the canvas: it
// resolves a project's current chain, mirrors it to disk, and
// turns what the user typed into the next prompt.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/quillhq/quill/internal/canvas"
	"github.com/quillhq/quill/internal/db"
	"github.com/quillhq/quill/internal/history"
)

// ErrNothingPending is returned by Commit when the canvas holds
// no new text.
var ErrNothingPending = errors.New("no pending text in canvas")

// Engine runs canvas operations for projects. Operations on the
// same project are serialized; different projects run in
// parallel.
type Engine struct {
	db     *db.DB
	logger *slog.Logger
	strict bool
	locks  keyedMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrict makes chain resolution fail on broken parent links.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// NewEngine creates an engine over database. A nil logger
// discards output.
func NewEngine(
	database *db.DB, logger *slog.Logger, opts ...Option,
) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{db: database, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitProject registers dir as a project, or returns the existing
// one, and makes sure its canvas exists.
func (e *Engine) InitProject(
	ctx context.Context, dir string,
) (history.Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return history.Project{}, fmt.Errorf("resolving %s: %w", dir, err)
	}
	proj, err := e.db.CreateProject(history.Project{Path: abs})
	if err != nil {
		return history.Project{}, err
	}

	unlock := e.locks.Lock(proj.ID)
	defer unlock()

	path := canvas.Path(proj.Path)
	if _, err := canvas.Read(path); err == nil {
		return proj, nil
	}
	chain, err := e.chain(ctx, proj, proj.Head)
	if err != nil {
		return history.Project{}, err
	}
	if err := canvas.Write(path, chain); err != nil {
		return history.Project{}, err
	}
	e.logger.Info("project initialized",
		"project", proj.ID, "path", proj.Path)
	return proj, nil
}

// Project returns the project registered for dir.
func (e *Engine) Project(
	ctx context.Context, dir string,
) (history.Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return history.Project{}, fmt.Errorf("resolving %s: %w", dir, err)
	}
	return e.db.GetProjectByPath(ctx, abs)
}

// Chain resolves the chain ending at leafID, or at the project's
// head when leafID is empty.
func (e *Engine) Chain(
	ctx context.Context, projectID, leafID string,
) (history.Chain, error) {
	proj, err := e.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if leafID == "" {
		leafID = proj.Head
	}
	return e.chain(ctx, proj, leafID)
}

// chain fetches one snapshot of the project's prompts and
// resolves leafID in it. An empty leafID is the empty chain.
func (e *Engine) chain(
	ctx context.Context, proj history.Project, leafID string,
) (history.Chain, error) {
	if leafID == "" {
		return nil, nil
	}
	snapshot, err := e.db.FetchPrompts(ctx, proj.ID)
	if err != nil {
		return nil, err
	}

	leaf, ok := history.NewIndex(snapshot).Get(leafID)
	if !ok {
		if e.strict {
			return nil, fmt.Errorf(
				"leaf prompt %s: %w", leafID, db.ErrNotFound,
			)
		}
		e.logger.Warn("leaf prompt missing, using empty chain",
			"project", proj.ID, "prompt", leafID)
		return nil, nil
	}

	chain, err := history.Resolve(
		snapshot, leaf, history.WithStrict(e.strict),
	)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", leafID, err)
	}
	if len(chain) > 0 && !chain[0].IsRoot() {
		e.logger.Warn("chain truncated at broken parent link",
			"project", proj.ID, "leaf", leafID,
			"stopped_at", chain[0].ID, "parent", chain[0].ParentID)
	}
	return chain, nil
}

// Render rewrites the canvas of a project from the chain ending
// at leafID and moves the head there. An empty leafID re-renders
// the current head.
func (e *Engine) Render(
	ctx context.Context, projectID, leafID string,
) (history.Chain, error) {
	unlock := e.locks.Lock(projectID)
	defer unlock()
	return e.render(ctx, projectID, leafID)
}

func (e *Engine) render(
	ctx context.Context, projectID, leafID string,
) (history.Chain, error) {
	proj, err := e.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if leafID == "" {
		leafID = proj.Head
	}
	chain, err := e.chain(ctx, proj, leafID)
	if err != nil {
		return nil, err
	}

	if err := canvas.Write(canvas.Path(proj.Path), chain); err != nil {
		return nil, err
	}
	head := ""
	if leaf, ok := chain.Leaf(); ok {
		head = leaf.ID
	}
	if head != proj.Head {
		if err := e.db.SetHead(proj.ID, head); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("canvas rendered",
		"project", proj.ID, "head", head, "nodes", len(chain))
	return chain, nil
}

// Pending compares the project's canvas with its head chain and
// returns the match result. The canvas is not modified.
func (e *Engine) Pending(
	ctx context.Context, projectID string,
) (canvas.Result, error) {
	unlock := e.locks.Lock(projectID)
	defer unlock()
	res, _, err := e.pending(ctx, projectID)
	return res, err
}

func (e *Engine) pending(
	ctx context.Context, projectID string,
) (canvas.Result, history.Chain, error) {
	proj, err := e.db.GetProject(ctx, projectID)
	if err != nil {
		return canvas.Result{}, nil, err
	}
	chain, err := e.chain(ctx, proj, proj.Head)
	if err != nil {
		return canvas.Result{}, nil, err
	}
	res, err := canvas.MatchFile(canvas.Path(proj.Path), chain)
	if err != nil {
		return canvas.Result{}, nil, err
	}
	if res.Diverged {
		e.logger.Info("canvas diverged from history",
			"project", proj.ID, "at", res.DivergedAt,
			"matched", res.Matched)
	}
	return res, chain, nil
}

// Commit stores the canvas remainder as a new pending prompt and
// re-renders the canvas with it as the head. The new prompt
// continues the head chain, or, when the user edited the
// recorded history, branches off the last node that still
// matched. An edited response is kept as a corrected answer: see
// commitCorrection.
func (e *Engine) Commit(
	ctx context.Context, projectID string,
) (history.Prompt, error) {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	res, chain, err := e.pending(ctx, projectID)
	if err != nil {
		return history.Prompt{}, err
	}
	parent := ""
	if res.Matched > 0 {
		parent = chain[res.Matched-1].ID
	}
	if res.Diverged && res.RequestMatched {
		return e.commitCorrection(ctx, projectID, parent, chain[res.Matched], res.Remainder)
	}

	// A diverged remainder may still open with the marker line when
	// the user cut trailing blocks.
	request := strings.TrimSpace(res.Remainder)
	request = strings.TrimSpace(strings.TrimPrefix(request, canvas.AskMarker))
	if request == "" {
		return history.Prompt{}, ErrNothingPending
	}

	p, err := e.db.StorePrompt(history.Prompt{
		ProjectID: projectID,
		ParentID:  parent,
		Request:   request,
	})
	if err != nil {
		return history.Prompt{}, fmt.Errorf("storing prompt: %w", err)
	}
	if _, err := e.render(ctx, projectID, p.ID); err != nil {
		return history.Prompt{}, err
	}
	e.logger.Info("prompt committed",
		"project", projectID, "prompt", p.ID, "parent", parent,
		"branched", res.Diverged)
	return p, nil
}

// commitCorrection handles a canvas whose node request still
// matches but whose response was edited. The edited text becomes
// the answer of a sibling of node, so the recorded answer is never
// rewritten. Text typed below the marker becomes a pending child of
// that sibling. The last stored prompt is returned and rendered.
func (e *Engine) commitCorrection(
	ctx context.Context, projectID, parent string,
	node history.Prompt, remainder string,
) (history.Prompt, error) {
	response, typed := splitEditedResponse(remainder, node.ID)
	corrected, err := e.db.StorePrompt(history.Prompt{
		ProjectID: projectID,
		ParentID:  parent,
		Request:   node.Request,
		Response:  response,
	})
	if err != nil {
		return history.Prompt{}, fmt.Errorf("storing corrected prompt: %w", err)
	}
	last := corrected
	if typed != "" {
		last, err = e.db.StorePrompt(history.Prompt{
			ProjectID: projectID,
			ParentID:  corrected.ID,
			Request:   typed,
		})
		if err != nil {
			return history.Prompt{}, fmt.Errorf("storing prompt: %w", err)
		}
	}
	if _, err := e.render(ctx, projectID, last.ID); err != nil {
		return history.Prompt{}, err
	}
	e.logger.Info("corrected answer committed",
		"project", projectID, "original", node.ID,
		"corrected", corrected.ID, "prompt", last.ID)
	return last, nil
}

// splitEditedResponse reads a remainder that starts right after the
// request of node id. The response runs from that node's output
// header to the next prompt header or the marker line; typed is the
// text after the marker.
func splitEditedResponse(remainder, id string) (response, typed string) {
	body := strings.TrimPrefix(remainder, "\n")
	body = strings.TrimPrefix(body, canvas.OutputHeader+id+"\n")

	end := len(body)
	for _, stop := range []string{canvas.PromptHeader, canvas.AskMarker} {
		if at := strings.Index("\n"+body, "\n"+stop); at >= 0 && at < end {
			end = at
		}
	}
	response = strings.TrimSpace(body[:end])

	if at := strings.Index("\n"+body, "\n"+canvas.AskMarker); at >= 0 {
		typed = strings.TrimSpace(body[at+len(canvas.AskMarker):])
	}
	return response, typed
}

// Answer records the response of a prompt and re-renders the
// canvas at the current head. An empty promptID answers the head.
func (e *Engine) Answer(
	ctx context.Context, projectID, promptID, response string,
) (history.Prompt, error) {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	if promptID == "" {
		proj, err := e.db.GetProject(ctx, projectID)
		if err != nil {
			return history.Prompt{}, err
		}
		if proj.Head == "" {
			return history.Prompt{}, fmt.Errorf(
				"project %s has no prompts: %w", projectID, db.ErrNotFound,
			)
		}
		promptID = proj.Head
	}
	if err := e.ownedPrompt(ctx, projectID, promptID); err != nil {
		return history.Prompt{}, err
	}
	if err := e.db.UpdatePrompt(promptID, "response", response); err != nil {
		return history.Prompt{}, err
	}
	if _, err := e.render(ctx, projectID, ""); err != nil {
		return history.Prompt{}, err
	}
	return e.db.GetPrompt(ctx, promptID)
}

// Checkout moves the head to promptID and re-renders.
func (e *Engine) Checkout(
	ctx context.Context, projectID, promptID string,
) (history.Chain, error) {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	if err := e.ownedPrompt(ctx, projectID, promptID); err != nil {
		return nil, err
	}
	return e.render(ctx, projectID, promptID)
}

// Remove deletes a prompt and its subtree. When the head was in
// the subtree it moves to the deleted prompt's parent. The canvas
// is re-rendered either way.
func (e *Engine) Remove(
	ctx context.Context, projectID, promptID string,
) ([]string, error) {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	if err := e.ownedPrompt(ctx, projectID, promptID); err != nil {
		return nil, err
	}
	victim, err := e.db.GetPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}
	proj, err := e.db.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	deleted, err := e.db.DeletePrompt(promptID)
	if err != nil {
		return nil, err
	}
	head := proj.Head
	for _, id := range deleted {
		if id == proj.Head {
			head = victim.ParentID
			break
		}
	}
	if head != proj.Head {
		if err := e.db.SetHead(projectID, head); err != nil {
			return nil, err
		}
	}
	if _, err := e.render(ctx, projectID, ""); err != nil {
		return nil, err
	}
	e.logger.Info("prompts removed",
		"project", projectID, "count", len(deleted))
	return deleted, nil
}

// Tips returns the last prompt of every branch in the project.
func (e *Engine) Tips(
	ctx context.Context, projectID string,
) ([]history.Prompt, error) {
	snapshot, err := e.db.FetchPrompts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return history.NewIndex(snapshot).Leaves(), nil
}

// Context returns the scroll preamble of a project.
func (e *Engine) Context(
	ctx context.Context, projectID string,
) (string, error) {
	scrolls, err := e.db.FetchScrolls(ctx, projectID)
	if err != nil {
		return "", err
	}
	return history.BuildContext(scrolls), nil
}

// Import stores prompts into a project. Records keep their IDs
// and parent links; their project is overridden. The head moves
// to the last imported record when the project had none.
func (e *Engine) Import(
	ctx context.Context, projectID string, prompts []history.Prompt,
) error {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	proj, err := e.db.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	for i := range prompts {
		prompts[i].ProjectID = projectID
	}
	if err := e.db.StorePrompts(prompts); err != nil {
		return fmt.Errorf("importing prompts: %w", err)
	}
	if proj.Head == "" && len(prompts) > 0 {
		if _, err := e.render(ctx, projectID, prompts[len(prompts)-1].ID); err != nil {
			return err
		}
	}
	e.logger.Info("prompts imported",
		"project", projectID, "count", len(prompts))
	return nil
}

func (e *Engine) ownedPrompt(
	ctx context.Context, projectID, promptID string,
) error {
	p, err := e.db.GetPrompt(ctx, promptID)
	if err != nil {
		return err
	}
	if p.ProjectID != projectID {
		return fmt.Errorf(
			"prompt %s belongs to another project: %w",
			promptID, db.ErrNotFound,
		)
	}
	return nil
}
