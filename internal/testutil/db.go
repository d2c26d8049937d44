// Package testutil opens throwaway SQLite databases for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/iknowaviation/quizport/internal/db"
	"github.com/iknowaviation/quizport/internal/quiz"
)

// NewDB opens a fresh schema-initialised SQLite file under t.TempDir().
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?mode=rwc"
	d, err := db.Open(context.Background(), db.DriverSQLite, dsn, quiz.DefaultSchema.Columns())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// SeedQuiz inserts a master row with the given settings and returns its id.
func SeedQuiz(t testing.TB, d *sql.DB, name string, settings quiz.Settings) int64 {
	t.Helper()
	id, err := quiz.NewSQLStore(d, nil).InsertMaster(context.Background(), quiz.QuizBlock{
		Name:            name,
		DescriptionHTML: quiz.StringPtr("<p>" + name + " description</p>"),
		FinalScreenHTML: quiz.StringPtr("<p>" + name + " done</p>"),
		Settings:        settings,
	})
	if err != nil {
		t.Fatalf("seed quiz %q: %v", name, err)
	}
	return id
}
