package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/templates"
)

type TemplateStore interface {
	List(ctx context.Context) ([]templates.Template, error)
	Get(ctx context.Context, id string) (templates.Template, error)
	Save(ctx context.Context, t templates.Template) (templates.Template, error)
	Delete(ctx context.Context, id string) error
	DefaultID(ctx context.Context) (string, error)
	SetDefaultID(ctx context.Context, id string) error
}

type DefaultsLoader interface {
	MasterDefaults(ctx context.Context, id int64) (quiz.Defaults, error)
}

// GET /templates
func ListTemplatesHandler(store TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		def, err := store.DefaultID(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []templates.Template{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"default_id": def, "templates": list})
	}
}

// POST /templates  {id?, name, settings, variants | description_variants, final_screen_html}
//
// variants is the raw textarea form ("A: ...\n---\nB: ..." or a JSON object)
// and wins over description_variants when both are sent.
func SaveTemplateHandler(store TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID                  string            `json:"id"`
			Name                string            `json:"name"`
			SourceQuizID        int64             `json:"source_quiz_id"`
			Settings            map[string]any    `json:"settings"`
			Variants            string            `json:"variants"`
			DescriptionVariants map[string]string `json:"description_variants"`
			FinalScreenHTML     string            `json:"final_screen_html"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		variants := req.DescriptionVariants
		if strings.TrimSpace(req.Variants) != "" {
			variants = templates.ParseVariants(req.Variants)
		}
		t, err := store.Save(r.Context(), templates.Template{
			ID:                  req.ID,
			Name:                req.Name,
			SourceQuizID:        req.SourceQuizID,
			Settings:            req.Settings,
			DescriptionVariants: variants,
			FinalScreenHTML:     req.FinalScreenHTML,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// POST /templates/capture  {id?, name, quiz_id}
func CaptureTemplateHandler(store TemplateStore, quizzes DefaultsLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			QuizID int64  `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuizID <= 0 {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		d, err := quizzes.MasterDefaults(r.Context(), req.QuizID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(d.Settings) == 0 {
			http.Error(w, "quiz not found", http.StatusNotFound)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = fmt.Sprintf("Captured from quiz #%d", req.QuizID)
		}
		t, err := store.Save(r.Context(), templates.Capture(req.ID, name, req.QuizID, d))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// DELETE /templates/{id}
func DeleteTemplateHandler(store TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.Delete(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, templates.ErrNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /templates/{id}/default
func SetDefaultTemplateHandler(store TemplateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := store.SetDefaultID(r.Context(), id)
		if errors.Is(err, templates.ErrNotFound) {
			http.Error(w, "template not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"default_id": id})
	}
}
