package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB, tunes the pool and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:ujian.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/ujian?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: schema: %w", err)
	}
	return db, nil
}

// tunePool keeps SQLite to a single connection (single writer).
func tunePool(driver Driver, db *sql.DB) {
	switch driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(45 * time.Minute)
		db.SetConnMaxIdleTime(15 * time.Minute)
	}
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS ujian (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  max_questions INTEGER NOT NULL DEFAULT 10,
  shuffle_questions INTEGER NOT NULL DEFAULT 0,
  shuffle_answers INTEGER NOT NULL DEFAULT 0,
  practice_mode INTEGER NOT NULL DEFAULT 0,
  allow_resubmit INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ujian_questions (
  ujian_id TEXT NOT NULL REFERENCES ujian(id) ON DELETE CASCADE,
  id TEXT NOT NULL,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  correct_answer_json TEXT NOT NULL,
  points INTEGER NOT NULL DEFAULT 1,
  order_index INTEGER NOT NULL,
  PRIMARY KEY (ujian_id, id)
);
CREATE INDEX IF NOT EXISTS idx_ujian_questions_order ON ujian_questions(ujian_id, order_index);

CREATE TABLE IF NOT EXISTS ujian_attempts (
  id TEXT PRIMARY KEY,
  ujian_id TEXT NOT NULL REFERENCES ujian(id),
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  snapshot_json TEXT NOT NULL,
  seed INTEGER NOT NULL,
  started_at INTEGER NOT NULL,
  completed_at INTEGER,
  last_activity_at INTEGER NOT NULL,
  score REAL,
  total_points INTEGER,
  total_points_earned INTEGER,
  correct_answers INTEGER,
  incorrect_answers INTEGER,
  total_questions INTEGER
);
CREATE INDEX IF NOT EXISTS idx_ujian_attempts_user_ujian ON ujian_attempts(user_id, ujian_id);
CREATE UNIQUE INDEX IF NOT EXISTS ux_ujian_attempts_active
  ON ujian_attempts(user_id, ujian_id) WHERE status = 'in_progress';

CREATE TABLE IF NOT EXISTS ujian_answers (
  attempt_id TEXT NOT NULL REFERENCES ujian_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  user_answer_json TEXT NOT NULL,
  is_correct INTEGER,
  points_earned INTEGER NOT NULL DEFAULT 0,
  answered_at INTEGER NOT NULL,
  PRIMARY KEY (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS ujian (
  id TEXT PRIMARY KEY,
  title VARCHAR(255) NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  max_questions INTEGER NOT NULL DEFAULT 10,
  shuffle_questions BOOLEAN NOT NULL DEFAULT FALSE,
  shuffle_answers BOOLEAN NOT NULL DEFAULT FALSE,
  practice_mode BOOLEAN NOT NULL DEFAULT FALSE,
  allow_resubmit BOOLEAN NOT NULL DEFAULT FALSE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS ujian_questions (
  ujian_id TEXT NOT NULL REFERENCES ujian(id) ON DELETE CASCADE,
  id TEXT NOT NULL,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  correct_answer_json TEXT NOT NULL,
  points INTEGER NOT NULL DEFAULT 1,
  order_index INTEGER NOT NULL,
  PRIMARY KEY (ujian_id, id)
);
CREATE INDEX IF NOT EXISTS idx_ujian_questions_order ON ujian_questions(ujian_id, order_index);

CREATE TABLE IF NOT EXISTS ujian_attempts (
  id TEXT PRIMARY KEY,
  ujian_id TEXT NOT NULL REFERENCES ujian(id),
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'in_progress',
  snapshot_json TEXT NOT NULL,
  seed BIGINT NOT NULL,
  started_at BIGINT NOT NULL,
  completed_at BIGINT,
  last_activity_at BIGINT NOT NULL,
  score DOUBLE PRECISION,
  total_points INTEGER,
  total_points_earned INTEGER,
  correct_answers INTEGER,
  incorrect_answers INTEGER,
  total_questions INTEGER
);
CREATE INDEX IF NOT EXISTS idx_ujian_attempts_user_ujian ON ujian_attempts(user_id, ujian_id);
CREATE UNIQUE INDEX IF NOT EXISTS ux_ujian_attempts_active
  ON ujian_attempts(user_id, ujian_id) WHERE status = 'in_progress';

CREATE TABLE IF NOT EXISTS ujian_answers (
  attempt_id TEXT NOT NULL REFERENCES ujian_attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  user_answer_json TEXT NOT NULL,
  is_correct BOOLEAN,
  points_earned INTEGER NOT NULL DEFAULT 0,
  answered_at BIGINT NOT NULL,
  PRIMARY KEY (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
