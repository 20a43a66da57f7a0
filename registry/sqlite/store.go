// Package sqlite persists mount records in a local SQLite database. A file
// path keeps records across process restarts; ":memory:" keeps them for the
// lifetime of the store only.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/mwantia/cim/registry"
)

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore opens or creates the mount registry database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL keeps concurrent readers cheap while a mount is being recorded.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cim_mounts (
		image_path TEXT PRIMARY KEY,
		volume_id  TEXT NOT NULL,
		ref_count  INTEGER NOT NULL CHECK(ref_count > 0),
		mounted_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Record(ctx context.Context, imagePath, volumeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO cim_mounts (image_path, volume_id, ref_count, mounted_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(image_path) DO UPDATE SET ref_count = ref_count + 1
		RETURNING ref_count`,
		imagePath, volumeID, time.Now().Unix())

	var refs int
	if err := row.Scan(&refs); err != nil {
		return 0, fmt.Errorf("record mount of %q: %w", imagePath, err)
	}
	return refs, nil
}

func (s *Store) Release(ctx context.Context, imagePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var refs int
	err = tx.QueryRowContext(ctx,
		"SELECT ref_count FROM cim_mounts WHERE image_path = ?", imagePath).Scan(&refs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, registry.ErrNotRecorded
	}
	if err != nil {
		return 0, err
	}

	if refs <= 1 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM cim_mounts WHERE image_path = ?", imagePath); err != nil {
			return 0, err
		}
		refs = 0
	} else {
		refs--
		if _, err := tx.ExecContext(ctx,
			"UPDATE cim_mounts SET ref_count = ? WHERE image_path = ?", refs, imagePath); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return refs, nil
}

func (s *Store) Lookup(ctx context.Context, imagePath string) (*registry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &registry.Record{ImagePath: imagePath}
	var mountedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT volume_id, ref_count, mounted_at FROM cim_mounts WHERE image_path = ?",
		imagePath).Scan(&rec.VolumeID, &rec.RefCount, &mountedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, registry.ErrNotRecorded
	}
	if err != nil {
		return nil, err
	}

	rec.MountedAt = time.Unix(mountedAt, 0)
	return rec, nil
}

func (s *Store) List(ctx context.Context) ([]*registry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT image_path, volume_id, ref_count, mounted_at FROM cim_mounts ORDER BY image_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*registry.Record
	for rows.Next() {
		rec := &registry.Record{}
		var mountedAt int64
		if err := rows.Scan(&rec.ImagePath, &rec.VolumeID, &rec.RefCount, &mountedAt); err != nil {
			return nil, err
		}
		rec.MountedAt = time.Unix(mountedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}
