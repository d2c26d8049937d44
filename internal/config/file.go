package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iknowaviation/quizport/internal/cpt"
	"github.com/iknowaviation/quizport/internal/rbac"
	"github.com/iknowaviation/quizport/internal/templates"
)

// File is the optional YAML overlay. Zero values leave the env config alone.
type File struct {
	BaseQuizID int64                `yaml:"base_quiz_id"`
	Content    *cpt.Config          `yaml:"content"`
	Templates  []templates.Template `yaml:"templates"`
	Roles      rbac.Policy          `yaml:"roles"`
	// DefaultTemplate is set as default after seeding when non-empty.
	DefaultTemplate string `yaml:"default_template"`
}

// LoadFile strictly decodes path; unknown keys are an error.
func LoadFile(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return f, fmt.Errorf("decode config %s: %w", path, err)
	}
	return f, nil
}

// ContentConfig merges the env post type and any overlay into the defaults.
func (c Config) ContentConfig(f File) cpt.Config {
	cc := cpt.DefaultConfig()
	if f.Content != nil {
		o := *f.Content
		if o.PostType != "" {
			cc.PostType = o.PostType
		}
		if o.LinkMetaKey != "" {
			cc.LinkMetaKey = o.LinkMetaKey
		}
		if o.HashMetaKey != "" {
			cc.HashMetaKey = o.HashMetaKey
		}
		if o.EmbedFormat != "" {
			cc.EmbedFormat = o.EmbedFormat
		}
		if o.Taxonomies.Topic != "" {
			cc.Taxonomies.Topic = o.Taxonomies.Topic
		}
		if o.Taxonomies.Difficulty != "" {
			cc.Taxonomies.Difficulty = o.Taxonomies.Difficulty
		}
		if o.Taxonomies.Audience != "" {
			cc.Taxonomies.Audience = o.Taxonomies.Audience
		}
		if o.Registered != nil {
			cc.Registered = o.Registered
		}
	}
	if c.PostType != "" && (f.Content == nil || f.Content.PostType == "") {
		cc.PostType = c.PostType
	}
	cc.TitleFallback = c.PostTitleFallback
	return cc
}

// Apply folds scalar overlay values into c.
func (c *Config) Apply(f File) {
	if f.BaseQuizID > 0 {
		c.BaseQuizID = f.BaseQuizID
	}
}
