package export

import (
	"context"
	"strings"

	"github.com/iknowaviation/quizport/internal/importer"
	"github.com/iknowaviation/quizport/internal/quiz"
)

// BuildRequest is what the operator filled in on the builder form.
type BuildRequest struct {
	BaseQuizID      int64
	Name            string
	DescriptionHTML string
	FinalScreenHTML string
	// Settings as submitted. When non-nil, boolean keys missing from it are
	// treated as unchecked.
	Settings      quiz.Settings
	Topics        string // comma separated
	Difficulty    string
	Audience      string // comma separated
	QuestionsJSON string
}

// FallbackSettings seed a builder document when the base quiz is missing.
func FallbackSettings() quiz.Settings {
	return quiz.Settings{
		"is_active":           int64(1),
		"require_login":       int64(1),
		"take_again":          int64(1),
		"randomize_questions": int64(1),
		"single_page":         int64(0),
		"login_mode":          "",
		"mode":                "live",
	}
}

// Build produces a starter document from the base quiz merged with the
// request, validated the same way a mode "all" import would be.
func (x *Exporter) Build(ctx context.Context, req BuildRequest) (Document, error) {
	defs, err := x.Quizzes.MasterDefaults(ctx, req.BaseQuizID)
	if err != nil {
		return Document{}, err
	}
	settings := defs.Settings
	if len(settings) == 0 {
		settings = FallbackSettings()
	}
	settings = x.Schema.Normalize(settings)

	if req.Settings != nil {
		for _, f := range x.Schema.Fields() {
			v, ok := req.Settings[f.Key]
			switch {
			case f.Bool:
				settings[f.Key] = quiz.BoolInt(v)
			case ok:
				settings[f.Key] = quiz.ScalarString(v)
			}
		}
	}
	settings[quiz.TakeAgainKey] = int64(1)

	desc := req.DescriptionHTML
	if strings.TrimSpace(desc) == "" {
		desc = defs.DescriptionHTML
	}
	final := req.FinalScreenHTML
	if strings.TrimSpace(final) == "" {
		final = defs.FinalScreenHTML
	}

	p := quiz.Payload{
		Quiz: &quiz.QuizBlock{
			Name:            strings.TrimSpace(req.Name),
			DescriptionHTML: quiz.StringPtr(desc),
			FinalScreenHTML: quiz.StringPtr(final),
			Settings:        settings,
		},
		Questions:      []quiz.Question{},
		QuestionsState: quiz.FieldList,
	}
	if raw := strings.TrimSpace(req.QuestionsJSON); raw != "" {
		doc, err := importer.Decode([]byte(`{"questions":` + raw + `}`))
		if err != nil {
			return Document{}, err
		}
		p.Questions, p.QuestionsState = importer.ParseQuestions(doc["questions"], true)
	}
	tags := &quiz.Tags{
		Topics:     splitCSV(req.Topics),
		Difficulty: strings.TrimSpace(req.Difficulty),
		Audience:   splitCSV(req.Audience),
	}
	if !tags.IsEmpty() {
		p.Quiz.Tags = tags
	}

	if err := importer.Validate(p, importer.ModeAll); err != nil {
		return Document{}, err
	}
	if p.Questions == nil {
		p.Questions = []quiz.Question{}
	}
	return Document{Quiz: Block{QuizBlock: *p.Quiz}, Questions: p.Questions}, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
