package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iknowaviation/quizport/internal/config"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"BASE_QUIZ_ID", "NOTICE_TTL", "CORS_ORIGINS", "CPT_TITLE_FALLBACK", "DB_DRIVER"} {
		t.Setenv(k, "")
	}
	c := config.FromEnv()
	if c.BaseQuizID != 6 || c.NoticeTTL != time.Minute || c.DBDriver != "sqlite" || !c.PostTitleFallback {
		t.Fatalf("defaults = %+v", c)
	}
	if len(c.CORSOrigins) != 1 {
		t.Fatalf("cors = %v", c.CORSOrigins)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BASE_QUIZ_ID", "12")
	t.Setenv("NOTICE_TTL", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CPT_TITLE_FALLBACK", "false")
	t.Setenv("DEFAULTS_CACHE_SIZE", "nope")
	c := config.FromEnv()
	if c.BaseQuizID != 12 || c.NoticeTTL != 5*time.Minute || c.PostTitleFallback {
		t.Fatalf("overrides = %+v", c)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors = %v", c.CORSOrigins)
	}
	if c.DefaultsCacheSize != 128 {
		t.Fatalf("bad int should fall back, got %d", c.DefaultsCacheSize)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "quizport.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadFile(t *testing.T) {
	p := writeFile(t, `
base_quiz_id: 42
default_template: wx
content:
  post_type: lesson
  taxonomies:
    topic: lesson_topic
  registered: [lesson_topic]
roles:
  reviewer: ["quiz:list", "template:*"]
templates:
  - id: wx
    name: Weather
    settings:
      mode: practice
      take_again: 1
    description_variants:
      A: "<p>a</p>"
`)
	f, err := config.LoadFile(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(f.Templates) != 1 || f.Templates[0].Settings["mode"] != "practice" || f.Templates[0].Variant("A") != "<p>a</p>" {
		t.Fatalf("templates = %+v", f.Templates)
	}

	c := config.Config{BaseQuizID: 6, PostType: "quiz", PostTitleFallback: true}
	c.Apply(f)
	if c.BaseQuizID != 42 {
		t.Fatalf("base quiz id = %d", c.BaseQuizID)
	}
	cc := c.ContentConfig(f)
	if cc.PostType != "lesson" || cc.Taxonomies.Topic != "lesson_topic" || cc.Taxonomies.Difficulty != "quiz_difficulty" {
		t.Fatalf("content config = %+v", cc)
	}
	if len(cc.Registered) != 1 || !cc.TitleFallback {
		t.Fatalf("content config = %+v", cc)
	}
	if got := f.Roles["reviewer"]; len(got) != 2 || got[1] != "template:*" {
		t.Fatalf("roles = %v", f.Roles)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	p := writeFile(t, "base_quiz_id: 1\nbase_quizz: 2\n")
	if _, err := config.LoadFile(p); err == nil || !strings.Contains(err.Error(), "base_quizz") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestContentConfigEnvPostType(t *testing.T) {
	c := config.Config{PostType: "exam"}
	cc := c.ContentConfig(config.File{})
	if cc.PostType != "exam" || cc.TitleFallback {
		t.Fatalf("content config = %+v", cc)
	}
}
