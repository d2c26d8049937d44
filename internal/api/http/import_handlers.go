package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	authmw "github.com/iknowaviation/quizport/internal/auth/middleware"
	"github.com/iknowaviation/quizport/internal/importer"
	"github.com/iknowaviation/quizport/internal/notice"
)

// maxUpload caps the size of an uploaded document.
var maxUpload int64 = 20 << 20

type Importer interface {
	Run(ctx context.Context, raw []byte, opts importer.Options) importer.Result
}

// noticeKey scopes the last-result notice to the operator.
func noticeKey(r *http.Request) string {
	return "last:" + authmw.SubjectOr(r.Context(), "anonymous")
}

// POST /import (multipart: file=document.json plus operation fields)
func ImportHandler(eng Importer, notices notice.Store, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		raw, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if int64(len(raw)) > maxUpload {
			http.Error(w, fmt.Sprintf("file exceeds %d bytes", maxUpload), http.StatusRequestEntityTooLarge)
			return
		}

		opts := importer.Options{
			Execution:           importer.ParseExecution(r.FormValue("execution")),
			ReplaceMode:         r.FormValue("replace_mode"),
			LegacyReplace:       formBool(r, "replace_existing"),
			SyncPosts:           formBool(r, "sync_posts"),
			TemplateID:          r.FormValue("template_id"),
			TemplateVariant:     r.FormValue("template_variant"),
			ForceTemplate:       formBool(r, "force_template"),
			OverrideDescription: r.FormValue("override_description"),
			OverrideFinalScreen: r.FormValue("override_final_screen"),
		}
		res := eng.Run(r.Context(), raw, opts)
		if err := notices.Put(r.Context(), noticeKey(r), res); err != nil {
			logger.Warn("store import notice", "id", res.ID, "err", err)
		}

		status := http.StatusOK
		if !res.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, res)
	}
}

// GET /import/last
func LastImportHandler(notices notice.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok, err := notices.Get(r.Context(), noticeKey(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "no recent import", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// RecoverNotice leaves a failure notice behind when a handler panics, so
// the operator still sees an outcome on the next view.
func RecoverNotice(notices notice.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				msg := fmt.Sprintf("Import aborted unexpectedly: %v", p)
				res := importer.Result{
					ID:      uuid.NewString(),
					Message: msg,
					Log:     []string{"ERROR: " + msg},
					At:      time.Now().UTC(),
				}
				if err := notices.Put(context.WithoutCancel(r.Context()), noticeKey(r), res); err != nil {
					logger.Error("store failure notice", "err", err)
				}
				logger.Error("import handler panic", "panic", p, "path", r.URL.Path)
				http.Error(w, msg, http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func formBool(r *http.Request, key string) bool {
	switch r.FormValue(key) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
