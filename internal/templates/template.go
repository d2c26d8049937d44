// Package templates stores reusable settings/content bundles and merges
// them into import payloads.
package templates

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iknowaviation/quizport/internal/quiz"
)

var ErrNotFound = errors.New("template not found")

// DefaultVariant is used whenever a requested variant letter is missing.
const DefaultVariant = "A"

type Template struct {
	ID                  string            `json:"id" yaml:"id"`
	Name                string            `json:"name" yaml:"name"`
	SourceQuizID        int64             `json:"source_quiz_id" yaml:"source_quiz_id"`
	Settings            quiz.Settings     `json:"settings" yaml:"settings"`
	DescriptionVariants map[string]string `json:"description_variants" yaml:"description_variants"`
	FinalScreenHTML     string            `json:"final_screen_html" yaml:"final_screen_html"`
	UpdatedAt           time.Time         `json:"updated_at" yaml:"-"`
}

// NewID returns a fresh template identifier.
func NewID() string {
	return "tpl_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Variant returns the description for letter, falling back to A.
func (t Template) Variant(letter string) string {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		letter = DefaultVariant
	}
	if v := t.DescriptionVariants[letter]; strings.TrimSpace(v) != "" {
		return v
	}
	return t.DescriptionVariants[DefaultVariant]
}

// Letters lists the variant keys in order.
func (t Template) Letters() []string {
	out := make([]string, 0, len(t.DescriptionVariants))
	for k := range t.DescriptionVariants {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Apply merges tpl into block: template settings are the base and explicit
// payload settings win, except take_again which is always on. Description
// and final screen come from the template when force is set or the payload
// has no non-empty value.
func Apply(block *quiz.QuizBlock, tpl Template, variant string, force bool) {
	merged := tpl.Settings.Clone()
	for k, v := range block.Settings {
		merged[k] = v
	}
	merged[quiz.TakeAgainKey] = 1
	block.Settings = merged

	if desc := tpl.Variant(variant); strings.TrimSpace(desc) != "" {
		if force || block.DescriptionHTML == nil || strings.TrimSpace(*block.DescriptionHTML) == "" {
			block.DescriptionHTML = quiz.StringPtr(desc)
		}
	}
	if fs := tpl.FinalScreenHTML; strings.TrimSpace(fs) != "" {
		if force || block.FinalScreenHTML == nil || strings.TrimSpace(*block.FinalScreenHTML) == "" {
			block.FinalScreenHTML = quiz.StringPtr(fs)
		}
	}
}

// Capture builds a template from a stored quiz's defaults.
func Capture(id, name string, quizID int64, d quiz.Defaults) Template {
	if id == "" {
		id = NewID()
	}
	settings := d.Settings.Clone()
	settings[quiz.TakeAgainKey] = 1
	return Template{
		ID:                  id,
		Name:                name,
		SourceQuizID:        quizID,
		Settings:            settings,
		DescriptionVariants: map[string]string{DefaultVariant: d.DescriptionHTML},
		FinalScreenHTML:     d.FinalScreenHTML,
	}
}

var (
	variantSplit = regexp.MustCompile(`\n\s*---\s*\n`)
	variantKey   = regexp.MustCompile(`(?s)^([A-Za-z])\s*:\s*(.*)$`)
)

// ParseVariants reads either a JSON object {"A": "...", "B": "..."} or the
// delimiter form "A: html\n---\nB: html". An unkeyed part becomes A.
func ParseVariants(raw string) map[string]string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	out := map[string]string{}
	if raw == "" {
		return out
	}
	if strings.HasPrefix(raw, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			for k, v := range m {
				k = strings.ToUpper(strings.TrimSpace(k))
				if s := quiz.ScalarString(v); k != "" && strings.TrimSpace(s) != "" {
					out[k] = s
				}
			}
			return out
		}
	}
	for _, part := range variantSplit.Split(raw, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if m := variantKey.FindStringSubmatch(part); m != nil {
			out[strings.ToUpper(m[1])] = strings.TrimSpace(m[2])
			continue
		}
		if _, ok := out[DefaultVariant]; !ok {
			out[DefaultVariant] = part
		}
	}
	return out
}
