package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/quillhq/quill/internal/history"
)

const projectCols = `id, path, head, created_at`

func scanProject(rs rowScanner) (history.Project, error) {
	var p history.Project
	err := rs.Scan(&p.ID, &p.Path, &p.Head, &p.CreatedAt)
	return p, err
}

// CreateProject inserts a project. When a project with the same
// path already exists it is returned unchanged instead.
func (db *DB) CreateProject(p history.Project) (history.Project, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if err := db.validate.Struct(p); err != nil {
		return history.Project{}, fmt.Errorf("invalid project: %w", err)
	}

	var out history.Project
	err := db.Update(func(tx *sql.Tx) error {
		existing, err := scanProject(tx.QueryRow(
			"SELECT "+projectCols+" FROM projects WHERE path = ?",
			p.Path,
		))
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("looking up project: %w", err)
		}

		if _, err := tx.Exec(
			"INSERT INTO projects (id, path, head) VALUES (?, ?, ?)",
			p.ID, p.Path, p.Head,
		); err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}
		out, err = scanProject(tx.QueryRow(
			"SELECT "+projectCols+" FROM projects WHERE id = ?",
			p.ID,
		))
		return err
	})
	return out, err
}

// GetProject returns a project by ID.
func (db *DB) GetProject(
	ctx context.Context, id string,
) (history.Project, error) {
	p, err := scanProject(db.reader.QueryRowContext(ctx,
		"SELECT "+projectCols+" FROM projects WHERE id = ?", id,
	))
	if err != nil {
		return history.Project{}, notFound(err, "project", id)
	}
	return p, nil
}

// GetProjectByPath returns the project registered for a
// directory.
func (db *DB) GetProjectByPath(
	ctx context.Context, path string,
) (history.Project, error) {
	p, err := scanProject(db.reader.QueryRowContext(ctx,
		"SELECT "+projectCols+" FROM projects WHERE path = ?", path,
	))
	if err != nil {
		return history.Project{}, notFound(err, "project at", path)
	}
	return p, nil
}

// ListProjects returns all projects ordered by path.
func (db *DB) ListProjects(
	ctx context.Context,
) ([]history.Project, error) {
	rows, err := db.reader.QueryContext(ctx,
		"SELECT "+projectCols+" FROM projects ORDER BY path",
	)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var out []history.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetHead records which prompt the project's canvas mirrors.
// An empty promptID clears it.
func (db *DB) SetHead(projectID, promptID string) error {
	return db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			"UPDATE projects SET head = ? WHERE id = ?",
			promptID, projectID,
		)
		if err != nil {
			return fmt.Errorf("setting head: %w", err)
		}
		return requireAffected(res, "project", projectID)
	})
}

// DeleteProject removes a project with its prompts and scrolls.
func (db *DB) DeleteProject(id string) error {
	return db.Update(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM projects WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		return requireAffected(res, "project", id)
	})
}
