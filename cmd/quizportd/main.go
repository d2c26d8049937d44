package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	api "github.com/iknowaviation/quizport/internal/api/http"
	"github.com/iknowaviation/quizport/internal/app"
	auth "github.com/iknowaviation/quizport/internal/auth/middleware"
	"github.com/iknowaviation/quizport/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.FromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	// --- DB + stores ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	if tpl, created, err := a.EnsureDefaultTemplate(ctx); err != nil {
		log.Printf("default template: %v", err)
	} else if created {
		log.Printf("default template %q captured from quiz #%d", tpl.ID, a.Config.BaseQuizID)
	}

	// --- Auth (local JWT) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)
	var login *auth.Credentials
	if cfg.EnableLocalAuth {
		login = &auth.Credentials{User: cfg.AdminUser, PassHash: cfg.AdminPassHash, Role: "admin"}
	}

	r := api.NewRouter(api.RouterDeps{
		Auth:       authSvc,
		Login:      login,
		RBAC:       a.RBAC,
		Importer:   a.Engine,
		Exporter:   a.Exporter,
		Quizzes:    a.Quizzes,
		Templates:  a.Templates,
		Notices:    a.Notices,
		BaseQuizID: a.Config.BaseQuizID,
		Logger:     logger,
	})

	h := middleware.Logger(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})(r))

	log.Printf("listening on %s (db=%s, base quiz=%d)", cfg.HTTPAddr, cfg.DBDriver, a.Config.BaseQuizID)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, h))
}
