// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, registers "sqlite"

	"github.com/nicomem/gawr/internal/types"
)

// Sqlite is the durable DB implementation backed by a single SQLite file.
// Mutating operations take the write lock and run inside a transaction
// where more than one statement is involved; read operations take the
// read lock, since the underlying connection is shared by every stage.
type Sqlite struct {
	mu   sync.RWMutex
	conn *sql.DB
}

var _ DB = (*Sqlite)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	status   INTEGER NOT NULL DEFAULT 0,
	str_id   TEXT NOT NULL UNIQUE,
	work_len INTEGER NULL
);

CREATE TABLE IF NOT EXISTS work (
	video_id INTEGER NOT NULL,
	clip_idx INTEGER NOT NULL,
	PRIMARY KEY (video_id, clip_idx),
	FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
);
`

// OpenSqlite opens (creating if absent) the cache database at path.
func OpenSqlite(path string) (*Sqlite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	// A single *sql.DB is shared by every goroutine; serialize access to
	// the connection ourselves via Sqlite.mu rather than relying on the
	// driver's own pooling, since some operations are multi-statement and
	// must observe a consistent snapshot across statements.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Sqlite{conn: conn}, nil
}

func (s *Sqlite) Close() error {
	return s.conn.Close()
}

func (s *Sqlite) CheckVideo(ctx context.Context, strID types.VideoID) (types.DbVideoID, ProcessedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	var status int
	var workLen sql.NullInt64

	row := s.conn.QueryRowContext(ctx,
		`SELECT id, status, work_len FROM videos WHERE str_id = ?`, string(strID))
	switch err := row.Scan(&id, &status, &workLen); {
	case err == sql.ErrNoRows:
		res, err := s.conn.ExecContext(ctx,
			`INSERT INTO videos (status, str_id) VALUES (0, ?)`, string(strID))
		if err != nil {
			return 0, ProcessedState{}, fmt.Errorf("insert video %q: %w", strID, err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return 0, ProcessedState{}, fmt.Errorf("read new video id: %w", err)
		}
		return types.DbVideoID(newID), ProcessedState{Status: NotProcessed}, nil

	case err != nil:
		return 0, ProcessedState{}, fmt.Errorf("check video %q: %w", strID, err)
	}

	if status == int(Completed) {
		return types.DbVideoID(id), ProcessedState{Status: Completed}, nil
	}
	if !workLen.Valid {
		return types.DbVideoID(id), ProcessedState{Status: NotProcessed}, nil
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT clip_idx FROM work WHERE video_id = ?`, id)
	if err != nil {
		return 0, ProcessedState{}, fmt.Errorf("list remaining work for video %q: %w", strID, err)
	}
	defer rows.Close()

	var remaining []types.ClipIdx
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return 0, ProcessedState{}, fmt.Errorf("scan work row for video %q: %w", strID, err)
		}
		remaining = append(remaining, types.ClipIdx(idx))
	}
	if err := rows.Err(); err != nil {
		return 0, ProcessedState{}, err
	}

	return types.DbVideoID(id), ProcessedState{Status: RemainingClips, Clips: remaining}, nil
}

func (s *Sqlite) AssignWork(ctx context.Context, video types.DbVideoID, nbClips int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign_work tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM work WHERE video_id = ?`, int64(video)); err != nil {
		return fmt.Errorf("clear prior work: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO work (video_id, clip_idx) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare work insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < nbClips; i++ {
		if _, err := stmt.ExecContext(ctx, int64(video), i); err != nil {
			return fmt.Errorf("insert work row %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET work_len = ? WHERE id = ?`, nbClips, int64(video)); err != nil {
		return fmt.Errorf("update work_len: %w", err)
	}

	return tx.Commit()
}

func (s *Sqlite) CompleteWork(ctx context.Context, video types.DbVideoID, idx types.ClipIdx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM work WHERE video_id = ? AND clip_idx = ?`, int64(video), int(idx))
	if err != nil {
		return fmt.Errorf("complete work (video=%d, clip=%d): %w", video, idx, err)
	}
	return nil
}

func (s *Sqlite) SetVideoAsCompleted(ctx context.Context, video types.DbVideoID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set_video_as_completed tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`UPDATE videos SET status = ? WHERE id = ?`, int(Completed), int64(video)); err != nil {
		return fmt.Errorf("mark video %d completed: %w", video, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM work WHERE video_id = ?`, int64(video)); err != nil {
		return fmt.Errorf("clear remaining work for video %d: %w", video, err)
	}

	return tx.Commit()
}

func (s *Sqlite) CountVideos(ctx context.Context, filter *Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	var row *sql.Row
	if filter != nil {
		row = s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos WHERE status = ?`, int(*filter))
	} else {
		row = s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`)
	}
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}
