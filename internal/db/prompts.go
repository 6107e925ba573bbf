package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quillhq/quill/internal/history"
)

const promptCols = `id, project_id, parent_id, request,
	response, created_at`

// promptFields maps the names accepted by UpdatePrompt to
// columns. Keep in sync with the prompts table.
var promptFields = map[string]string{
	"request":   "request",
	"response":  "response",
	"parent_id": "parent_id",
}

func scanPrompt(rs rowScanner) (history.Prompt, error) {
	var p history.Prompt
	err := rs.Scan(
		&p.ID, &p.ProjectID, &p.ParentID, &p.Request,
		&p.Response, &p.CreatedAt,
	)
	return p, err
}

func scanPrompts(rows *sql.Rows) ([]history.Prompt, error) {
	var out []history.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FetchPrompts returns every prompt of a project in insertion
// order. The result comes from a single statement on the read
// pool, so it is one consistent snapshot even while writes are
// in flight.
func (db *DB) FetchPrompts(
	ctx context.Context, projectID string,
) ([]history.Prompt, error) {
	rows, err := db.reader.QueryContext(ctx, `
		SELECT `+promptCols+`
		FROM prompts
		WHERE project_id = ?
		ORDER BY created_at, rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying prompts: %w", err)
	}
	defer rows.Close()
	return scanPrompts(rows)
}

// GetPrompt returns a prompt by ID.
func (db *DB) GetPrompt(
	ctx context.Context, id string,
) (history.Prompt, error) {
	p, err := scanPrompt(db.reader.QueryRowContext(ctx,
		"SELECT "+promptCols+" FROM prompts WHERE id = ?", id,
	))
	if err != nil {
		return history.Prompt{}, notFound(err, "prompt", id)
	}
	return p, nil
}

// StorePrompt inserts or replaces a prompt and returns it as
// stored. A missing ID is generated. Replacing a prompt of another
// project fails with ErrConflict.
func (db *DB) StorePrompt(p history.Prompt) (history.Prompt, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if err := db.validate.Struct(p); err != nil {
		return history.Prompt{}, fmt.Errorf("invalid prompt: %w", err)
	}

	var out history.Prompt
	err := db.Update(func(tx *sql.Tx) error {
		var err error
		out, err = storePromptTx(tx, p)
		return err
	})
	return out, err
}

// StorePrompts inserts or replaces many prompts in one
// transaction.
func (db *DB) StorePrompts(ps []history.Prompt) error {
	for i := range ps {
		if ps[i].ID == "" {
			ps[i].ID = NewID()
		}
		if err := db.validate.Struct(ps[i]); err != nil {
			return fmt.Errorf("invalid prompt %d: %w", i, err)
		}
	}
	return db.Update(func(tx *sql.Tx) error {
		for _, p := range ps {
			if _, err := storePromptTx(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// storePromptTx upserts p. An existing row is only replaced when
// it belongs to the same project.
func storePromptTx(
	tx *sql.Tx, p history.Prompt,
) (history.Prompt, error) {
	var owner string
	err := tx.QueryRow(
		"SELECT project_id FROM prompts WHERE id = ?", p.ID,
	).Scan(&owner)
	switch {
	case err == nil && owner != p.ProjectID:
		return history.Prompt{}, fmt.Errorf(
			"prompt %s: %w", p.ID, ErrConflict,
		)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return history.Prompt{}, fmt.Errorf(
			"checking prompt %s: %w", p.ID, err,
		)
	}

	if p.CreatedAt == "" {
		_, err := tx.Exec(`
			INSERT INTO prompts
				(id, project_id, parent_id, request, response)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				project_id = excluded.project_id,
				parent_id = excluded.parent_id,
				request = excluded.request,
				response = excluded.response`,
			p.ID, p.ProjectID, p.ParentID, p.Request, p.Response,
		)
		if err != nil {
			return history.Prompt{}, fmt.Errorf("storing prompt %s: %w", p.ID, err)
		}
	} else {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO prompts
				(id, project_id, parent_id, request, response, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProjectID, p.ParentID, p.Request, p.Response,
			p.CreatedAt,
		)
		if err != nil {
			return history.Prompt{}, fmt.Errorf("storing prompt %s: %w", p.ID, err)
		}
	}
	stored, err := scanPrompt(tx.QueryRow(
		"SELECT "+promptCols+" FROM prompts WHERE id = ?", p.ID,
	))
	if err != nil {
		return history.Prompt{}, fmt.Errorf("reading back prompt %s: %w", p.ID, err)
	}
	return stored, nil
}

// UpdatePrompt sets one field of a prompt. field is one of
// "request", "response" or "parent_id".
func (db *DB) UpdatePrompt(id, field, value string) error {
	col, ok := promptFields[field]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			fmt.Sprintf("UPDATE prompts SET %s = ? WHERE id = ?", col),
			value, id,
		)
		if err != nil {
			return fmt.Errorf("updating prompt %s: %w", id, err)
		}
		return requireAffected(res, "prompt", id)
	})
}

// DeletePrompt removes a prompt together with every prompt below
// it, so no surviving record points at a deleted parent. It
// returns the deleted IDs, the given ID first.
func (db *DB) DeletePrompt(id string) ([]string, error) {
	var deleted []string
	err := db.Update(func(tx *sql.Tx) error {
		var projectID string
		if err := tx.QueryRow(
			"SELECT project_id FROM prompts WHERE id = ?", id,
		).Scan(&projectID); err != nil {
			return notFound(err, "prompt", id)
		}

		rows, err := tx.Query(
			"SELECT "+promptCols+" FROM prompts"+
				" WHERE project_id = ? ORDER BY created_at, rowid",
			projectID,
		)
		if err != nil {
			return fmt.Errorf("querying prompts: %w", err)
		}
		snapshot, err := scanPrompts(rows)
		rows.Close()
		if err != nil {
			return err
		}

		deleted = history.NewIndex(snapshot).Descendants(id)
		stmt, err := tx.Prepare("DELETE FROM prompts WHERE id = ?")
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()
		for _, d := range deleted {
			if _, err := stmt.Exec(d); err != nil {
				return fmt.Errorf("deleting prompt %s: %w", d, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
