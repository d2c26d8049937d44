package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iknowaviation/quizport/internal/db"
	"github.com/iknowaviation/quizport/internal/options"
	"github.com/iknowaviation/quizport/internal/quiz"
)

// DefaultOption is the options key holding the default template id.
const DefaultOption = "quiz_import_default_template"

// DefaultTemplateID is the id EnsureDefault creates.
const DefaultTemplateID = "default"

type SQLStore struct {
	q    db.Querier
	opts *options.KV
	now  func() time.Time
}

func NewSQLStore(q db.Querier) *SQLStore {
	return &SQLStore{q: q, opts: options.New(q), now: time.Now}
}

func (s *SQLStore) List(ctx context.Context) ([]Template, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, name, source_quiz_id, settings_json, variants_json, final_screen, updated_at
		FROM import_templates ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, id string) (Template, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, name, source_quiz_id, settings_json, variants_json, final_screen, updated_at
		FROM import_templates WHERE id=$1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	return t, err
}

// Save inserts or replaces t, assigning an id when empty.
func (s *SQLStore) Save(ctx context.Context, t Template) (Template, error) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		t.ID = NewID()
	}
	if strings.TrimSpace(t.Name) == "" {
		t.Name = t.ID
	}
	if t.Settings == nil {
		t.Settings = quiz.Settings{}
	}
	if t.DescriptionVariants == nil {
		t.DescriptionVariants = map[string]string{}
	}
	sj, err := json.Marshal(t.Settings)
	if err != nil {
		return Template{}, err
	}
	vj, err := json.Marshal(t.DescriptionVariants)
	if err != nil {
		return Template{}, err
	}
	t.UpdatedAt = s.now().UTC().Truncate(time.Second)
	_, err = s.q.ExecContext(ctx, `INSERT INTO import_templates
		(id, name, source_quiz_id, settings_json, variants_json, final_screen, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, source_quiz_id=EXCLUDED.source_quiz_id,
		settings_json=EXCLUDED.settings_json, variants_json=EXCLUDED.variants_json,
		final_screen=EXCLUDED.final_screen, updated_at=EXCLUDED.updated_at`,
		t.ID, t.Name, t.SourceQuizID, string(sj), string(vj), t.FinalScreenHTML, t.UpdatedAt.Unix())
	if err != nil {
		return Template{}, fmt.Errorf("save template %s: %w", t.ID, err)
	}
	return t, nil
}

// Delete removes a template and clears the default pointer if it named it.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM import_templates WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete template %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	def, err := s.DefaultID(ctx)
	if err != nil {
		return err
	}
	if def == id {
		return s.opts.Delete(ctx, DefaultOption)
	}
	return nil
}

func (s *SQLStore) DefaultID(ctx context.Context) (string, error) {
	v, _, err := s.opts.Get(ctx, DefaultOption)
	return v, err
}

func (s *SQLStore) SetDefaultID(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.opts.Set(ctx, DefaultOption, id)
}

// EnsureDefault makes sure a default template exists, capturing one from
// quizID when there is none. created reports whether anything was written.
func (s *SQLStore) EnsureDefault(ctx context.Context, quizID int64,
	load func(context.Context, int64) (quiz.Defaults, error)) (t Template, created bool, err error) {
	id, err := s.DefaultID(ctx)
	if err != nil {
		return Template{}, false, err
	}
	if id != "" {
		if t, err = s.Get(ctx, id); err == nil {
			return t, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Template{}, false, err
		}
	}
	t, err = s.Get(ctx, DefaultTemplateID)
	if errors.Is(err, ErrNotFound) {
		d, lerr := load(ctx, quizID)
		if lerr != nil {
			return Template{}, false, fmt.Errorf("load defaults from quiz %d: %w", quizID, lerr)
		}
		t = Capture(DefaultTemplateID, fmt.Sprintf("Default (from quiz #%d)", quizID), quizID, d)
		if t, err = s.Save(ctx, t); err != nil {
			return Template{}, false, err
		}
	} else if err != nil {
		return Template{}, false, err
	}
	if err := s.opts.Set(ctx, DefaultOption, t.ID); err != nil {
		return Template{}, false, err
	}
	return t, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(r scanner) (Template, error) {
	var t Template
	var sj, vj string
	var updated int64
	if err := r.Scan(&t.ID, &t.Name, &t.SourceQuizID, &sj, &vj, &t.FinalScreenHTML, &updated); err != nil {
		return Template{}, err
	}
	if err := json.Unmarshal([]byte(sj), &t.Settings); err != nil {
		return Template{}, fmt.Errorf("template %s settings: %w", t.ID, err)
	}
	if err := json.Unmarshal([]byte(vj), &t.DescriptionVariants); err != nil {
		return Template{}, fmt.Errorf("template %s variants: %w", t.ID, err)
	}
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	return t, nil
}
