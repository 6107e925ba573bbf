package workspace

import (
	"context"
	"time"

	"github.com/quillhq/quill/internal/canvas"
)

// Watch calls onPending with the match result every time the
// project's canvas settles after an edit, until ctx is done.
// Results without new text are skipped.
func (e *Engine) Watch(
	ctx context.Context,
	projectID string,
	debounce time.Duration,
	onPending func(canvas.Result),
) error {
	proj, err := e.db.GetProject(ctx, projectID)
	if err != nil {
		return err
	}

	w, err := canvas.NewWatcher(debounce, e.logger, func(string) {
		res, err := e.Pending(ctx, projectID)
		if err != nil {
			e.logger.Warn("reading pending canvas text",
				"project", projectID, "error", err)
			return
		}
		if res.Remainder == "" {
			return
		}
		onPending(res)
	})
	if err != nil {
		return err
	}
	if err := w.Watch(canvas.Path(proj.Path)); err != nil {
		return err
	}
	w.Start()
	defer w.Stop()

	e.logger.Info("watching canvas",
		"project", projectID, "path", canvas.Path(proj.Path))
	<-ctx.Done()
	return nil
}
