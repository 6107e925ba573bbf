package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quillhq/quill/internal/history"
)

const scrollCols = `id, project_id, source, content, position`

// FetchScrolls returns a project's scrolls in their stored order.
func (db *DB) FetchScrolls(
	ctx context.Context, projectID string,
) ([]history.Scroll, error) {
	rows, err := db.reader.QueryContext(ctx, `
		SELECT `+scrollCols+`
		FROM scrolls
		WHERE project_id = ?
		ORDER BY position, rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying scrolls: %w", err)
	}
	defer rows.Close()

	var out []history.Scroll
	for rows.Next() {
		var s history.Scroll
		if err := rows.Scan(
			&s.ID, &s.ProjectID, &s.Source, &s.Content, &s.Position,
		); err != nil {
			return nil, fmt.Errorf("scanning scroll: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StoreScroll inserts or replaces a scroll at its given position.
func (db *DB) StoreScroll(s history.Scroll) (history.Scroll, error) {
	if s.ID == "" {
		s.ID = NewID()
	}
	if err := db.validate.Struct(s); err != nil {
		return history.Scroll{}, fmt.Errorf("invalid scroll: %w", err)
	}
	err := db.Update(func(tx *sql.Tx) error {
		return storeScrollTx(tx, s)
	})
	if err != nil {
		return history.Scroll{}, err
	}
	return s, nil
}

// AppendScroll stores a scroll after every existing scroll of its
// project, ignoring s.Position.
func (db *DB) AppendScroll(s history.Scroll) (history.Scroll, error) {
	if s.ID == "" {
		s.ID = NewID()
	}
	s.Position = 0
	if err := db.validate.Struct(s); err != nil {
		return history.Scroll{}, fmt.Errorf("invalid scroll: %w", err)
	}
	err := db.Update(func(tx *sql.Tx) error {
		if err := tx.QueryRow(
			"SELECT COALESCE(MAX(position) + 1, 0) FROM scrolls"+
				" WHERE project_id = ?",
			s.ProjectID,
		).Scan(&s.Position); err != nil {
			return fmt.Errorf("next scroll position: %w", err)
		}
		return storeScrollTx(tx, s)
	})
	if err != nil {
		return history.Scroll{}, err
	}
	return s, nil
}

func storeScrollTx(tx *sql.Tx, s history.Scroll) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO scrolls (`+scrollCols+`)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.ProjectID, s.Source, s.Content, s.Position,
	)
	if err != nil {
		return fmt.Errorf("storing scroll %s: %w", s.ID, err)
	}
	return nil
}

// DeleteScroll removes a scroll by ID.
func (db *DB) DeleteScroll(id string) error {
	return db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM scrolls WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting scroll: %w", err)
		}
		return requireAffected(res, "scroll", id)
	})
}
