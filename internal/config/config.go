package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	BlobBasePath string // archive of committed import documents

	AuthHMACSecret  string
	EnableLocalAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt

	CORSOrigins []string

	// Quiz whose settings seed versioned documents and the builder.
	BaseQuizID int64

	PostType          string
	PostTitleFallback bool

	NoticeTTL time.Duration

	DefaultsCacheSize int
	DefaultsCacheTTL  time.Duration

	// Optional YAML overlay, see File.
	File string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		BlobBasePath:      envOr("BLOB_BASE_PATH", "./data"),
		AuthHMACSecret:    envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth:   envBool("ENABLE_LOCAL_AUTH", true),
		AdminUser:         envOr("ADMIN_USER", "admin"),
		AdminPassHash:     envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:       csvOr("CORS_ORIGINS", "http://localhost:3000"),
		BaseQuizID:        envInt("BASE_QUIZ_ID", 6),
		PostType:          envOr("CPT_POST_TYPE", "quiz"),
		PostTitleFallback: envBool("CPT_TITLE_FALLBACK", true),
		NoticeTTL:         envDuration("NOTICE_TTL", 60*time.Second),
		DefaultsCacheSize: int(envInt("DEFAULTS_CACHE_SIZE", 128)),
		DefaultsCacheTTL:  envDuration("DEFAULTS_CACHE_TTL", time.Hour),
		File:              os.Getenv("QUIZPORT_CONFIG"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(k)), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
