package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrNewerVersion means the database was last written by a newer
// release than the running binary.
var ErrNewerVersion = errors.New("database written by newer version")

const versionKey = "app_version"

// CheckVersion compares the running version with the one that
// last wrote the database. A newer stored version yields
// ErrNewerVersion and leaves the record alone; otherwise the
// stored version is raised to current. Versions that are not
// valid semver (such as "dev") are never compared or recorded.
func (db *DB) CheckVersion(current string) (stored string, err error) {
	cur := canonicalVersion(current)
	err = db.Update(func(tx *sql.Tx) error {
		err := tx.QueryRow(
			"SELECT value FROM meta WHERE key = ?", versionKey,
		).Scan(&stored)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reading version: %w", err)
		}
		if cur == "" {
			return nil
		}

		prev := canonicalVersion(stored)
		if prev != "" && semver.Compare(prev, cur) > 0 {
			return fmt.Errorf(
				"%w: %s > %s", ErrNewerVersion, stored, current,
			)
		}
		if prev != "" && semver.Compare(prev, cur) == 0 {
			return nil
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
			versionKey, current,
		); err != nil {
			return fmt.Errorf("recording version: %w", err)
		}
		return nil
	})
	return stored, err
}

// canonicalVersion returns v as "vX.Y.Z[-pre]" or "" when v is
// not a semantic version.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}
