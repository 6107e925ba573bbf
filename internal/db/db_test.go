package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillhq/quill/internal/history"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// insertProject registers a project rooted at path and fails the
// test on error.
func insertProject(t *testing.T, d *DB, path string) history.Project {
	t.Helper()
	p, err := d.CreateProject(history.Project{Path: path})
	if err != nil {
		t.Fatalf("CreateProject %s: %v", path, err)
	}
	return p
}

// insertPrompt stores a prompt with a deterministic request and
// response derived from its ID.
func insertPrompt(
	t *testing.T, d *DB, projectID, id, parent string,
) history.Prompt {
	t.Helper()
	p, err := d.StorePrompt(history.Prompt{
		ID:        id,
		ProjectID: projectID,
		ParentID:  parent,
		Request:   "req " + id,
		Response:  "resp " + id,
	})
	if err != nil {
		t.Fatalf("StorePrompt %s: %v", id, err)
	}
	return p
}

func promptIDs(ps []history.Prompt) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func TestOpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "test.db")
	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	_, err = os.Stat(path)
	require.NoError(t, err, "db file not created")
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	d, err := Open(path)
	require.NoError(t, err)
	p := insertProject(t, d, "/work/a")
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()

	got, err := d.GetProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "/work/a", got.Path)
}

func TestUpdateRollsBackOnError(t *testing.T) {
	d := testDB(t)
	p := insertProject(t, d, "/work/a")

	boom := errors.New("boom")
	err := d.Update(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT INTO prompts (id, project_id) VALUES ('x', ?)",
			p.ID,
		); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = d.GetPrompt(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateProject(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	p := insertProject(t, d, "/work/a")
	assert.NotEmpty(t, p.ID)
	assert.NotEmpty(t, p.CreatedAt)
	assert.Empty(t, p.Head)

	again := insertProject(t, d, "/work/a")
	assert.Equal(t, p.ID, again.ID, "same path returns existing")

	byPath, err := d.GetProjectByPath(ctx, "/work/a")
	require.NoError(t, err)
	assert.Equal(t, p, byPath)

	insertProject(t, d, "/work/0")
	all, err := d.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "/work/0", all[0].Path)

	_, err = d.CreateProject(history.Project{})
	assert.Error(t, err, "empty path must fail validation")
}

func TestGetProjectNotFound(t *testing.T) {
	d := testDB(t)
	_, err := d.GetProject(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = d.GetProjectByPath(context.Background(), "/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetHead(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	p := insertProject(t, d, "/work/a")

	require.NoError(t, d.SetHead(p.ID, "prompt-1"))
	got, err := d.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "prompt-1", got.Head)

	assert.ErrorIs(t, d.SetHead("missing", "x"), ErrNotFound)
}

func TestDeleteProjectCascades(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	p := insertProject(t, d, "/work/a")
	insertPrompt(t, d, p.ID, "a", "")
	_, err := d.AppendScroll(history.Scroll{ProjectID: p.ID, Source: "x.md"})
	require.NoError(t, err)

	require.NoError(t, d.DeleteProject(p.ID))

	prompts, err := d.FetchPrompts(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, prompts)
	scrolls, err := d.FetchScrolls(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, scrolls)

	assert.ErrorIs(t, d.DeleteProject(p.ID), ErrNotFound)
}

func TestStoreAndFetchPrompts(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	p := insertProject(t, d, "/work/a")
	other := insertProject(t, d, "/work/b")

	insertPrompt(t, d, p.ID, "a", "")
	insertPrompt(t, d, p.ID, "b", "a")
	insertPrompt(t, d, p.ID, "c", "b")
	insertPrompt(t, d, other.ID, "z", "")

	got, err := d.FetchPrompts(ctx, p.ID)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"a", "b", "c"}, promptIDs(got)); diff != "" {
		t.Fatalf("prompt ids (-want +got):\n%s", diff)
	}
	assert.Equal(t, "b", got[2].ParentID)
	assert.Equal(t, "req c", got[2].Request)
	assert.NotEmpty(t, got[2].CreatedAt)

	chain, err := history.ResolveID(got, "c")
	require.NoError(t, err)
	assert.Equal(t, "a -> b -> c", chain.String())
}

func TestStorePromptGeneratesIDAndUpserts(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	proj := insertProject(t, d, "/work/a")

	p, err := d.StorePrompt(history.Prompt{
		ProjectID: proj.ID, Request: "hi",
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	assert.True(t, p.IsPending())

	p.Response = "hello"
	updated, err := d.StorePrompt(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Response)
	assert.Equal(t, p.CreatedAt, updated.CreatedAt)

	all, err := d.FetchPrompts(ctx, proj.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStorePromptValidation(t *testing.T) {
	d := testDB(t)
	_, err := d.StorePrompt(history.Prompt{ID: "x"})
	assert.Error(t, err, "missing project must fail validation")
}

func TestStorePromptsKeepsCreatedAt(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	proj := insertProject(t, d, "/work/a")

	require.NoError(t, d.StorePrompts([]history.Prompt{
		{ID: "late", ProjectID: proj.ID, CreatedAt: "2024-01-02T00:00:00.000Z"},
		{ID: "early", ProjectID: proj.ID, CreatedAt: "2024-01-01T00:00:00.000Z"},
	}))

	got, err := d.FetchPrompts(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, promptIDs(got))
	assert.Equal(t, "2024-01-01T00:00:00.000Z", got[0].CreatedAt)
}

func TestStorePromptsRejectsForeignID(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	a := insertProject(t, d, "/work/a")
	b := insertProject(t, d, "/work/b")
	insertPrompt(t, d, a.ID, "r1", "")
	insertPrompt(t, d, a.ID, "r2", "r1")

	err := d.StorePrompts([]history.Prompt{
		{ID: "fresh", ProjectID: b.ID, Request: "new"},
		{ID: "r1", ProjectID: b.ID, Request: "stolen"},
	})
	require.ErrorIs(t, err, ErrConflict)

	got, err := d.FetchPrompts(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, promptIDs(got))
	assert.Equal(t, "req r1", got[0].Request)

	other, err := d.FetchPrompts(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, other, "the batch rolls back as a whole")

	_, err = d.StorePrompt(history.Prompt{
		ID: "r2", ProjectID: b.ID, Request: "stolen",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSchemaHasHeadColumn(t *testing.T) {
	d := testDB(t)
	var n int
	require.NoError(t, d.Reader().QueryRow(
		"SELECT count(*) FROM pragma_table_info('projects') WHERE name = 'head'",
	).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUpdatePrompt(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	proj := insertProject(t, d, "/work/a")
	insertPrompt(t, d, proj.ID, "a", "")

	tests := []struct {
		field, value string
		check        func(history.Prompt) string
	}{
		{"request", "new req", func(p history.Prompt) string { return p.Request }},
		{"response", "new resp", func(p history.Prompt) string { return p.Response }},
		{"parent_id", "root", func(p history.Prompt) string { return p.ParentID }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			require.NoError(t, d.UpdatePrompt("a", tt.field, tt.value))
			got, err := d.GetPrompt(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, tt.value, tt.check(got))
		})
	}

	assert.ErrorIs(t, d.UpdatePrompt("a", "id", "x"), ErrInvalidField)
	assert.ErrorIs(t, d.UpdatePrompt("a", "request; DROP", "x"), ErrInvalidField)
	assert.ErrorIs(t, d.UpdatePrompt("zz", "request", "x"), ErrNotFound)
}

func TestDeletePromptRemovesSubtree(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	proj := insertProject(t, d, "/work/a")
	insertPrompt(t, d, proj.ID, "a", "")
	insertPrompt(t, d, proj.ID, "b", "a")
	insertPrompt(t, d, proj.ID, "c", "b")
	insertPrompt(t, d, proj.ID, "d", "a")
	insertPrompt(t, d, proj.ID, "e", "b")

	deleted, err := d.DeletePrompt("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "e"}, deleted)

	left, err := d.FetchPrompts(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "d"}, promptIDs(left))

	_, err = d.DeletePrompt("b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScrolls(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()
	proj := insertProject(t, d, "/work/a")

	first, err := d.AppendScroll(history.Scroll{
		ProjectID: proj.ID, Source: "/docs/b.md", Content: "B",
	})
	require.NoError(t, err)
	second, err := d.AppendScroll(history.Scroll{
		ProjectID: proj.ID, Source: "/docs/a.md", Content: "A",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)

	got, err := d.FetchScrolls(ctx, proj.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, "/docs/a.md", got[1].Source)

	moved := second
	moved.Position = -1
	_, err = d.StoreScroll(moved)
	assert.Error(t, err, "negative position must fail validation")

	require.NoError(t, d.DeleteScroll(first.ID))
	got, err = d.FetchScrolls(ctx, proj.ID)
	require.NoError(t, err)
	assert.Equal(t, []history.Scroll{second}, got)

	assert.ErrorIs(t, d.DeleteScroll(first.ID), ErrNotFound)
}

func TestCheckVersion(t *testing.T) {
	d := testDB(t)

	stored, err := d.CheckVersion("dev")
	require.NoError(t, err)
	assert.Empty(t, stored)

	stored, err = d.CheckVersion("1.2.0")
	require.NoError(t, err)
	assert.Empty(t, stored)

	stored, err = d.CheckVersion("v1.3.0")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", stored)

	stored, err = d.CheckVersion("1.2.9")
	assert.ErrorIs(t, err, ErrNewerVersion)
	assert.Equal(t, "v1.3.0", stored)

	stored, err = d.CheckVersion("dev")
	require.NoError(t, err)
	assert.Equal(t, "v1.3.0", stored, "dev builds never overwrite")
}

func TestCanonicalVersion(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"dev":          "",
		"1.2":          "v1.2.0",
		"v1.2.3":       "v1.2.3",
		" 0.4.0-rc.1 ": "v0.4.0-rc.1",
	}
	for in, want := range tests {
		assert.Equal(t, want, canonicalVersion(in), "input %q", in)
	}
}
