package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"smsblast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store at cfg.Path, creating the schema on
// first use.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage: sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) QuotaState(ctx context.Context) (QuotaState, bool, error) {
	var st QuotaState
	err := s.db.QueryRowContext(ctx, `SELECT date, sent FROM quota WHERE id = 1`).Scan(&st.Date, &st.Sent)
	if errors.Is(err, sql.ErrNoRows) {
		return QuotaState{}, false, nil
	}
	if err != nil {
		return QuotaState{}, false, err
	}
	return st, true, nil
}

func (s *sqliteStore) SaveQuotaState(ctx context.Context, st QuotaState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quota(id, date, sent) VALUES(1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET date=excluded.date, sent=excluded.sent`,
		st.Date, st.Sent,
	)
	return err
}

func (s *sqliteStore) SaveRun(ctx context.Context, run ArchivedRun) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("storage: run id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, started_at, status, total, success, failed, record)
		 VALUES(?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Status,
		run.Total, run.Success, run.Failed, string(run.Record),
	)
	return err
}

func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, status, total, success, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			rs RunSummary
			at string
		)
		if err := rows.Scan(&rs.ID, &at, &rs.Status, &rs.Total, &rs.Success, &rs.Failed); err != nil {
			return nil, err
		}
		rs.StartedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetRun(ctx context.Context, id string) (ArchivedRun, error) {
	var (
		run ArchivedRun
		at  string
		rec string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, status, total, success, failed, record
		 FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &at, &run.Status, &run.Total, &run.Success, &run.Failed, &rec)
	if errors.Is(err, sql.ErrNoRows) {
		return ArchivedRun{}, ErrNotFound
	}
	if err != nil {
		return ArchivedRun{}, err
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, at)
	run.Record = []byte(rec)
	return run, nil
}

func (s *sqliteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) PurgeRuns(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
