package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authmw "github.com/iknowaviation/quizport/internal/auth/middleware"
	"github.com/iknowaviation/quizport/internal/notice"
	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/rbac"
)

type QuizStore interface {
	QuizLister
	DefaultsLoader
}

type RouterDeps struct {
	Auth       *authmw.AuthService
	Login      *authmw.Credentials // nil disables /auth/login
	RBAC       *rbac.Checker       // nil uses the default policy
	Importer   Importer
	Exporter   Exporter
	Quizzes    QuizStore
	Templates  TemplateStore
	Notices    notice.Store
	BaseQuizID int64
	Logger     *slog.Logger
}

// NewRouter mounts the admin API. Callers add CORS and request logging.
func NewRouter(d RouterDeps) chi.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RBAC == nil {
		d.RBAC = rbac.NewChecker(nil)
	}
	if d.BaseQuizID <= 0 {
		d.BaseQuizID = 6
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if d.Login != nil {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, *d.Login))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.With(d.RBAC.Require(rbac.PermQuizImport), RecoverNotice(d.Notices, d.Logger)).
			Post("/import", ImportHandler(d.Importer, d.Notices, d.Logger))
		pr.With(d.RBAC.Require(rbac.PermQuizImport)).
			Get("/import/last", LastImportHandler(d.Notices))

		pr.With(d.RBAC.Require(rbac.PermQuizList)).
			Get("/quizzes", ListQuizzesHandler(d.Quizzes))
		pr.With(d.RBAC.Require(rbac.PermQuizExport)).
			Get("/quizzes/{id}/export", ExportHandler(d.Exporter))
		pr.With(d.RBAC.Require(rbac.PermQuizExport)).
			Post("/builder", BuilderHandler(d.Exporter, d.BaseQuizID))

		pr.With(d.RBAC.RequireAny(rbac.PermTemplateView, rbac.PermTemplateManage)).
			Get("/templates", ListTemplatesHandler(d.Templates))
		pr.With(d.RBAC.Require(rbac.PermTemplateManage)).
			Post("/templates", SaveTemplateHandler(d.Templates))
		pr.With(d.RBAC.Require(rbac.PermTemplateManage)).
			Post("/templates/capture", CaptureTemplateHandler(d.Templates, d.Quizzes))
		pr.With(d.RBAC.Require(rbac.PermTemplateManage)).
			Delete("/templates/{id}", DeleteTemplateHandler(d.Templates))
		pr.With(d.RBAC.Require(rbac.PermTemplateManage)).
			Post("/templates/{id}/default", SetDefaultTemplateHandler(d.Templates))
	})
	return r
}

var _ QuizStore = (*quiz.SQLStore)(nil)
