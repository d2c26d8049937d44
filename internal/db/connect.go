package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Column is an extra quiz_master column derived from the settings schema.
type Column struct {
	Name    string
	Integer bool
}

// ParseDriver maps common aliases to a Driver.
func ParseDriver(s string) Driver {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pg", "pgsql", "pgx", "postgres", "postgresql":
		return DriverPostgres
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return Driver(s)
	}
}

// Open opens a DB and ensures schema exists. masterCols are the whitelisted
// settings columns of quiz_master.
func Open(ctx context.Context, driver Driver, dsn string, masterCols []Column) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:quizport.db?cache=shared&mode=rwc"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizport?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		if err := applySQLitePragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := ensureSchema(ctx, db, driver, masterCols); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver, masterCols []Column) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	if _, err := db.ExecContext(ctx, masterDDL(driver, masterCols)); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

func masterDDL(driver Driver, cols []Column) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS quiz_master (\n")
	if driver == DriverPostgres {
		b.WriteString("  id BIGSERIAL PRIMARY KEY,\n")
	} else {
		b.WriteString("  id INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	}
	b.WriteString("  name TEXT NOT NULL,\n")
	b.WriteString("  description TEXT NOT NULL DEFAULT '',\n")
	b.WriteString("  final_screen TEXT NOT NULL DEFAULT '',\n")
	b.WriteString("  reuse_questions_from TEXT NOT NULL DEFAULT '',\n")
	b.WriteString("  added_on BIGINT NOT NULL DEFAULT 0")
	for _, c := range cols {
		if c.Integer {
			fmt.Fprintf(&b, ",\n  %s INTEGER NOT NULL DEFAULT 0", c.Name)
		} else {
			fmt.Fprintf(&b, ",\n  %s TEXT NOT NULL DEFAULT ''", c.Name)
		}
	}
	b.WriteString("\n);\n")
	b.WriteString("CREATE INDEX IF NOT EXISTS idx_quiz_master_name ON quiz_master(name);\n")
	return b.String()
}

// tunePool keeps SQLite to a single writer connection.
func tunePool(driver Driver, db *sql.DB) {
	maxOpen := 20
	maxIdle := 10
	connLife := 45 * time.Minute
	idleLife := 15 * time.Minute

	if driver == DriverSQLite {
		maxOpen = 1
		maxIdle = 1
		connLife = 0
		idleLife = 0
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLife)
	db.SetConnMaxIdleTime(idleLife)
}

func applySQLitePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS quiz_question (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  exam_id INTEGER NOT NULL REFERENCES quiz_master(id) ON DELETE CASCADE,
  title TEXT NOT NULL DEFAULT '',
  question TEXT NOT NULL,
  answer_type TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0,
  explain_answer TEXT NOT NULL DEFAULT '',
  dont_randomize_answers INTEGER NOT NULL DEFAULT 0,
  truefalse INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_quiz_question_exam ON quiz_question(exam_id);

CREATE TABLE IF NOT EXISTS quiz_answer (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES quiz_question(id) ON DELETE CASCADE,
  answer TEXT NOT NULL,
  correct INTEGER NOT NULL DEFAULT 0,
  point REAL NOT NULL DEFAULT 0,
  sort_order INTEGER NOT NULL DEFAULT 0,
  explanation TEXT
);
CREATE INDEX IF NOT EXISTS idx_quiz_answer_question ON quiz_answer(question_id);

CREATE TABLE IF NOT EXISTS posts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  post_type TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'draft',
  created_at INTEGER NOT NULL,
  modified_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS postmeta (
  meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
  post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
  meta_key TEXT NOT NULL,
  meta_value TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_postmeta_key ON postmeta(meta_key, meta_value);

CREATE TABLE IF NOT EXISTS post_terms (
  post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
  taxonomy TEXT NOT NULL,
  term TEXT NOT NULL,
  PRIMARY KEY (post_id, taxonomy, term)
);

CREATE TABLE IF NOT EXISTS import_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  source_quiz_id INTEGER NOT NULL DEFAULT 0,
  settings_json TEXT NOT NULL DEFAULT '{}',
  variants_json TEXT NOT NULL DEFAULT '{}',
  final_screen TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS options (
  name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS quiz_question (
  id BIGSERIAL PRIMARY KEY,
  exam_id BIGINT NOT NULL REFERENCES quiz_master(id) ON DELETE CASCADE,
  title TEXT NOT NULL DEFAULT '',
  question TEXT NOT NULL,
  answer_type TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0,
  explain_answer TEXT NOT NULL DEFAULT '',
  dont_randomize_answers INTEGER NOT NULL DEFAULT 0,
  truefalse INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_quiz_question_exam ON quiz_question(exam_id);

CREATE TABLE IF NOT EXISTS quiz_answer (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES quiz_question(id) ON DELETE CASCADE,
  answer TEXT NOT NULL,
  correct INTEGER NOT NULL DEFAULT 0,
  point DOUBLE PRECISION NOT NULL DEFAULT 0,
  sort_order INTEGER NOT NULL DEFAULT 0,
  explanation TEXT
);
CREATE INDEX IF NOT EXISTS idx_quiz_answer_question ON quiz_answer(question_id);

CREATE TABLE IF NOT EXISTS posts (
  id BIGSERIAL PRIMARY KEY,
  post_type TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'draft',
  created_at BIGINT NOT NULL,
  modified_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS postmeta (
  meta_id BIGSERIAL PRIMARY KEY,
  post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
  meta_key TEXT NOT NULL,
  meta_value TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_postmeta_key ON postmeta(meta_key, meta_value);

CREATE TABLE IF NOT EXISTS post_terms (
  post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
  taxonomy TEXT NOT NULL,
  term TEXT NOT NULL,
  PRIMARY KEY (post_id, taxonomy, term)
);

CREATE TABLE IF NOT EXISTS import_templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  source_quiz_id BIGINT NOT NULL DEFAULT 0,
  settings_json TEXT NOT NULL DEFAULT '{}',
  variants_json TEXT NOT NULL DEFAULT '{}',
  final_screen TEXT NOT NULL DEFAULT '',
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS options (
  name TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
`
