package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/canvas"
)

func TestWatchReportsTypedText(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan canvas.Result, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- f.engine.Watch(ctx, f.proj.ID, 20*time.Millisecond,
			func(res canvas.Result) {
				select {
				case results <- res:
				default:
				}
			})
	}()

	// Writes before the watch is registered are missed, so keep
	// appending until one is reported.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var got canvas.Result
wait:
	for {
		select {
		case got = <-results:
			break wait
		case <-tick.C:
			f.writeCanvas(t, canvas.AskMarker+"\nhello\n")
		case <-deadline:
			t.Fatal("no pending text reported")
		}
	}
	assert.Equal(t, "hello\n", got.Remainder)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchUnknownProject(t *testing.T) {
	f := newFixture(t)
	err := f.engine.Watch(context.Background(), "nope", time.Second,
		func(canvas.Result) {})
	assert.Error(t, err)
}
