package quiz

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/iknowaviation/quizport/internal/db"
)

// TakeAgainKey is the setting forced on for every imported quiz.
const TakeAgainKey = "take_again"

// ReuseKey may appear inside settings as an alternative to quiz.reuse_questions_from.
const ReuseKey = "reuse_questions_from"

// Field describes one whitelisted master setting.
type Field struct {
	Key    string
	Column string
	Bool   bool
}

// ColumnValue is a filtered setting ready to be bound to a statement.
type ColumnValue struct {
	Column string
	Value  any
}

// Schema is the single table of master settings that may be read from or
// written to storage. Persistence, export, the builder and the DDL all
// consult the same instance.
type Schema struct {
	fields []Field
	byKey  map[string]Field
}

func NewSchema(fields []Field) *Schema {
	s := &Schema{fields: make([]Field, 0, len(fields)), byKey: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if f.Column == "" {
			f.Column = f.Key
		}
		s.fields = append(s.fields, f)
		s.byKey[f.Key] = f
	}
	return s
}

func (s *Schema) Fields() []Field { return s.fields }

func (s *Schema) Lookup(key string) (Field, bool) {
	f, ok := s.byKey[key]
	return f, ok
}

func (s *Schema) IsBool(key string) bool {
	f, ok := s.byKey[key]
	return ok && f.Bool
}

// Row filters settings through the whitelist in schema order. Boolean keys
// become 0/1, everything else is stored as a string.
func (s *Schema) Row(settings Settings) []ColumnValue {
	out := make([]ColumnValue, 0, len(settings))
	for _, f := range s.fields {
		v, ok := settings[f.Key]
		if !ok {
			continue
		}
		if f.Bool {
			out = append(out, ColumnValue{Column: f.Column, Value: BoolInt(v)})
		} else {
			out = append(out, ColumnValue{Column: f.Column, Value: ScalarString(v)})
		}
	}
	return out
}

// Normalize returns the whitelisted subset of settings with export typing
// (bool keys as int, others as string).
func (s *Schema) Normalize(settings Settings) Settings {
	out := Settings{}
	for _, f := range s.fields {
		v, ok := settings[f.Key]
		if !ok {
			continue
		}
		if f.Bool {
			out[f.Key] = BoolInt(v)
		} else {
			out[f.Key] = ScalarString(v)
		}
	}
	return out
}

// BoolInt coerces checkbox-ish values: true, 1 and "1" are on.
func BoolInt(v any) int64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
	case string:
		if strings.TrimSpace(x) == "1" {
			return 1
		}
	case json.Number:
		if f, err := x.Float64(); err == nil && f == 1 {
			return 1
		}
	case float64:
		if x == 1 {
			return 1
		}
	case int:
		if x == 1 {
			return 1
		}
	case int64:
		if x == 1 {
			return 1
		}
	}
	return 0
}

// ScalarString renders a JSON scalar as a string; non-scalars become "".
func ScalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "1"
		}
		return ""
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	return ""
}

var DefaultSchema = NewSchema([]Field{
	{Key: "is_active", Bool: true},
	{Key: "require_login", Bool: true},
	{Key: "take_again", Bool: true},
	{Key: "email_taker", Bool: true},
	{Key: "email_admin", Bool: true},
	{Key: "randomize_questions", Bool: true},
	{Key: "login_mode"},
	{Key: "time_limit"},
	{Key: "pull_random", Bool: true},
	{Key: "show_answers", Bool: true},
	{Key: "single_page", Bool: true},
	{Key: "mode"},
	{Key: "require_captcha"},
	{Key: "grades_by_percent", Bool: true},
	{Key: "admin_email"},
	{Key: "disallow_previous_button", Bool: true},
	{Key: "email_output"},
	{Key: "live_result", Bool: true},
	{Key: "gradecat_design"},
	{Key: "is_scheduled", Bool: true},
	{Key: "schedule_from"},
	{Key: "schedule_to"},
	{Key: "submit_always_visible", Bool: true},
	{Key: "show_pagination", Bool: true},
	{Key: "advanced_settings"},
	{Key: "enable_save_button", Bool: true},
	{Key: "shareable_final_screen", Bool: true},
	{Key: "redirect_final_screen", Bool: true},
	{Key: "editor_id"},
	{Key: "takings_by_ip", Bool: true},
	{Key: "reuse_default_grades", Bool: true},
	{Key: "store_progress", Bool: true},
	{Key: "custom_per_page", Bool: true},
	{Key: "randomize_cats", Bool: true},
	{Key: "no_ajax", Bool: true},
	{Key: "email_subject"},
	{Key: "pay_always", Bool: true},
	{Key: "published_odd", Bool: true},
	{Key: "published_odd_url"},
	{Key: "delay_results", Bool: true},
	{Key: "delay_results_date"},
	{Key: "delay_results_content"},
	{Key: "is_likert_survey", Bool: true},
	{Key: "tags"},
	{Key: "thumb"},
	{Key: "limit_reused_questions", Bool: true},
	{Key: "retake_after", Bool: true},
	{Key: "is_personality_quiz", Bool: true},
})

// Columns describes the schema as quiz_master DDL columns.
func (s *Schema) Columns() []db.Column {
	out := make([]db.Column, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, db.Column{Name: f.Column, Integer: f.Bool})
	}
	return out
}
