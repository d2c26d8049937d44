package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iknowaviation/quizport/internal/export"
	"github.com/iknowaviation/quizport/internal/importer"
	"github.com/iknowaviation/quizport/internal/quiz"
)

type Exporter interface {
	Export(ctx context.Context, quizID int64) (export.Document, error)
	Build(ctx context.Context, req export.BuildRequest) (export.Document, error)
}

type QuizLister interface {
	ListMasters(ctx context.Context, limit int) ([]quiz.MasterSummary, error)
}

// GET /quizzes
func ListQuizzesHandler(store QuizLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListMasters(r.Context(), 300)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []quiz.MasterSummary{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /quizzes/{id}/export
func ExportHandler(exp Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		doc, err := exp.Export(r.Context(), id)
		if errors.Is(err, quiz.ErrNotFound) {
			http.Error(w, "quiz not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeDownload(w, export.Filename(id, doc.Quiz.Name), doc)
	}
}

type buildRequest struct {
	BaseQuizID      int64           `json:"base_quiz_id"`
	Name            string          `json:"name"`
	DescriptionHTML string          `json:"description_html"`
	FinalScreenHTML string          `json:"final_screen_html"`
	Settings        map[string]any  `json:"settings"`
	Topics          string          `json:"topics"`
	Difficulty      string          `json:"difficulty"`
	Audience        string          `json:"audience"`
	Questions       json.RawMessage `json:"questions"`
}

// POST /builder  (?download=1 for an attachment)
func BuilderHandler(exp Exporter, baseQuizID int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req buildRequest
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.BaseQuizID <= 0 {
			req.BaseQuizID = baseQuizID
		}
		doc, err := exp.Build(r.Context(), export.BuildRequest{
			BaseQuizID:      req.BaseQuizID,
			Name:            req.Name,
			DescriptionHTML: req.DescriptionHTML,
			FinalScreenHTML: req.FinalScreenHTML,
			Settings:        req.Settings,
			Topics:          req.Topics,
			Difficulty:      req.Difficulty,
			Audience:        req.Audience,
			QuestionsJSON:   string(req.Questions),
		})
		var ve *importer.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, ve.Msg, http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.URL.Query().Get("download") == "1" {
			writeDownload(w, export.BuilderFilename(doc.Quiz.Name), doc)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func writeDownload(w http.ResponseWriter, filename string, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
