package templates_test

import (
	"context"
	"errors"
	"testing"

	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/templates"
	"github.com/iknowaviation/quizport/internal/testutil"
)

func TestSQLStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := templates.NewSQLStore(testutil.NewDB(t))

	saved, err := s.Save(ctx, templates.Template{
		Name:                "Weather",
		Settings:            quiz.Settings{"mode": "live"},
		DescriptionVariants: map[string]string{"A": "<p>a</p>"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || saved.UpdatedAt.IsZero() {
		t.Fatalf("save did not assign id/time: %+v", saved)
	}

	got, err := s.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Weather" || got.Settings["mode"] != "live" || got.Variant("A") != "<p>a</p>" {
		t.Fatalf("round trip = %+v", got)
	}

	saved.Name = "Weather 2"
	if _, err := s.Save(ctx, saved); err != nil {
		t.Fatalf("resave: %v", err)
	}
	all, err := s.List(ctx)
	if err != nil || len(all) != 1 || all[0].Name != "Weather 2" {
		t.Fatalf("list = %+v, %v", all, err)
	}

	if err := s.SetDefaultID(ctx, "nope"); !errors.Is(err, templates.ErrNotFound) {
		t.Fatalf("default to unknown id: %v", err)
	}
	if err := s.SetDefaultID(ctx, saved.ID); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := s.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if def, _ := s.DefaultID(ctx); def != "" {
		t.Fatalf("default pointer not cleared: %q", def)
	}
	if err := s.Delete(ctx, saved.ID); !errors.Is(err, templates.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.Get(ctx, saved.ID); !errors.Is(err, templates.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
}

func TestEnsureDefault(t *testing.T) {
	ctx := context.Background()
	d := testutil.NewDB(t)
	s := templates.NewSQLStore(d)
	base := testutil.SeedQuiz(t, d, "Base", quiz.Settings{"mode": "live"})
	loads := 0
	load := func(ctx context.Context, id int64) (quiz.Defaults, error) {
		loads++
		return quiz.NewSQLStore(d, nil).MasterDefaults(ctx, id)
	}

	tpl, created, err := s.EnsureDefault(ctx, base, load)
	if err != nil || !created {
		t.Fatalf("first ensure = %t, %v", created, err)
	}
	if tpl.ID != templates.DefaultTemplateID || tpl.SourceQuizID != base {
		t.Fatalf("template = %+v", tpl)
	}
	if tpl.Settings["mode"] != "live" || tpl.Variant("A") != "<p>Base description</p>" {
		t.Fatalf("captured = %+v", tpl)
	}
	if def, _ := s.DefaultID(ctx); def != templates.DefaultTemplateID {
		t.Fatalf("default id = %q", def)
	}

	_, created, err = s.EnsureDefault(ctx, base, load)
	if err != nil || created || loads != 1 {
		t.Fatalf("second ensure = %t, %v, loads=%d", created, err, loads)
	}
}
