// Package cpt keeps one published content post per quiz, linked by a meta
// key and carrying the quiz embed marker, and assigns tag terms to it.
package cpt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iknowaviation/quizport/internal/db"
	"github.com/iknowaviation/quizport/internal/quiz"
)

const StatusPublish = "publish"

type Taxonomies struct {
	Topic      string `yaml:"topic"`
	Difficulty string `yaml:"difficulty"`
	Audience   string `yaml:"audience"`
}

type Config struct {
	PostType      string     `yaml:"post_type"`
	LinkMetaKey   string     `yaml:"link_meta_key"`
	HashMetaKey   string     `yaml:"hash_meta_key"`
	EmbedFormat   string     `yaml:"embed_format"`
	Taxonomies    Taxonomies `yaml:"taxonomies"`
	Registered    []string   `yaml:"registered"`
	TitleFallback bool       `yaml:"title_fallback"`
}

func DefaultConfig() Config {
	return Config{
		PostType:    "quiz",
		LinkMetaKey: "_quiz_exam_id",
		HashMetaKey: "_quiz_import_hash",
		EmbedFormat: "[quiz-embed %d]",
		Taxonomies: Taxonomies{
			Topic:      "quiz_topic",
			Difficulty: "quiz_difficulty",
			Audience:   "quiz_audience",
		},
		Registered:    []string{"quiz_topic", "quiz_difficulty", "quiz_audience"},
		TitleFallback: true,
	}
}

// Marker renders the embed marker for quizID.
func (c Config) Marker(quizID int64) string { return fmt.Sprintf(c.EmbedFormat, quizID) }

type Post struct {
	ID         int64
	PostType   string
	Title      string
	Content    string
	Status     string
	CreatedAt  int64
	ModifiedAt int64
}

type Synchronizer struct {
	cfg    Config
	q      db.Querier
	logger *slog.Logger
	now    func() time.Time
}

func New(q db.Querier, cfg Config, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{cfg: cfg, q: q, logger: logger, now: time.Now}
}

// WithQuerier returns a synchronizer bound to q, typically an open *sql.Tx.
func (s *Synchronizer) WithQuerier(q db.Querier) *Synchronizer {
	cp := *s
	cp.q = q
	return &cp
}

func (s *Synchronizer) Config() Config { return s.cfg }

// FindLinked returns the newest post linked to quizID, or 0.
func (s *Synchronizer) FindLinked(ctx context.Context, quizID int64) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `SELECT p.id FROM posts p
		JOIN postmeta m ON m.post_id = p.id
		WHERE p.post_type=$1 AND m.meta_key=$2 AND m.meta_value=$3
		ORDER BY p.id DESC LIMIT 1`,
		s.cfg.PostType, s.cfg.LinkMetaKey, strconv.FormatInt(quizID, 10)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find linked post: %w", err)
	}
	return id, nil
}

// findUnlinkedByTitle matches posts created before the link meta existed.
func (s *Synchronizer) findUnlinkedByTitle(ctx context.Context, title string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `SELECT p.id FROM posts p
		WHERE p.post_type=$1 AND p.title=$2
		AND NOT EXISTS (SELECT 1 FROM postmeta m WHERE m.post_id = p.id AND m.meta_key=$3)
		ORDER BY p.id DESC LIMIT 1`, s.cfg.PostType, title, s.cfg.LinkMetaKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find post by title: %w", err)
	}
	return id, nil
}

// Upsert creates or updates the content post for quizID and refreshes its
// link and hash meta. The body is always replaced by the embed marker.
func (s *Synchronizer) Upsert(ctx context.Context, quizID int64, title, hash string) (postID int64, created bool, err error) {
	postID, err = s.FindLinked(ctx, quizID)
	if err != nil {
		return 0, false, err
	}
	if postID == 0 && s.cfg.TitleFallback {
		if postID, err = s.findUnlinkedByTitle(ctx, title); err != nil {
			return 0, false, err
		}
	}

	now := s.now().Unix()
	body := s.cfg.Marker(quizID)
	if postID > 0 {
		if _, err := s.q.ExecContext(ctx, `UPDATE posts SET title=$1, content=$2, status=$3, modified_at=$4 WHERE id=$5`,
			title, body, StatusPublish, now, postID); err != nil {
			return 0, false, fmt.Errorf("update post %d: %w", postID, err)
		}
	} else {
		if err := s.q.QueryRowContext(ctx, `INSERT INTO posts (post_type, title, content, status, created_at, modified_at)
			VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			s.cfg.PostType, title, body, StatusPublish, now, now).Scan(&postID); err != nil {
			return 0, false, fmt.Errorf("insert post: %w", err)
		}
		created = true
	}

	if err := s.setMeta(ctx, postID, s.cfg.LinkMetaKey, strconv.FormatInt(quizID, 10)); err != nil {
		return 0, false, err
	}
	if err := s.setMeta(ctx, postID, s.cfg.HashMetaKey, hash); err != nil {
		return 0, false, err
	}
	s.logger.Debug("content post synced", "quiz_id", quizID, "post_id", postID, "created", created)
	return postID, created, nil
}

func (s *Synchronizer) setMeta(ctx context.Context, postID int64, key, value string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE postmeta SET meta_value=$1 WHERE post_id=$2 AND meta_key=$3`, value, postID, key)
	if err != nil {
		return fmt.Errorf("update meta %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.q.ExecContext(ctx, `INSERT INTO postmeta (post_id, meta_key, meta_value) VALUES ($1,$2,$3)`,
		postID, key, value); err != nil {
		return fmt.Errorf("insert meta %s: %w", key, err)
	}
	return nil
}

// Meta returns the first value of key on postID.
func (s *Synchronizer) Meta(ctx context.Context, postID int64, key string) (string, bool, error) {
	var v string
	err := s.q.QueryRowContext(ctx, `SELECT meta_value FROM postmeta WHERE post_id=$1 AND meta_key=$2
		ORDER BY meta_id ASC LIMIT 1`, postID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Synchronizer) GetPost(ctx context.Context, postID int64) (Post, error) {
	var p Post
	err := s.q.QueryRowContext(ctx, `SELECT id, post_type, title, content, status, created_at, modified_at
		FROM posts WHERE id=$1`, postID).Scan(&p.ID, &p.PostType, &p.Title, &p.Content, &p.Status, &p.CreatedAt, &p.ModifiedAt)
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

// HealthCheck re-reads the post and reports its link state. Problems are
// returned as WARNING lines, never as errors.
func (s *Synchronizer) HealthCheck(ctx context.Context, postID, quizID int64) []string {
	const tag = "[Content Health]"
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return []string{fmt.Sprintf("%s WARNING: post ID=%d could not be read: %v", tag, postID, err)}
	}
	lines := []string{fmt.Sprintf("%s Post ID=%d type=%s status=%s title=%q", tag, p.ID, p.PostType, p.Status, p.Title)}

	want := strconv.FormatInt(quizID, 10)
	got, ok, err := s.Meta(ctx, postID, s.cfg.LinkMetaKey)
	switch {
	case err != nil:
		lines = append(lines, fmt.Sprintf("%s WARNING: could not read %s: %v", tag, s.cfg.LinkMetaKey, err))
	case !ok || got != want:
		lines = append(lines, fmt.Sprintf("%s WARNING: %s=%q does not match quiz ID=%d", tag, s.cfg.LinkMetaKey, got, quizID))
	default:
		lines = append(lines, fmt.Sprintf("%s %s=%s OK", tag, s.cfg.LinkMetaKey, got))
	}

	marker := s.cfg.Marker(quizID)
	if strings.Contains(p.Content, marker) {
		lines = append(lines, fmt.Sprintf("%s Embed marker %s present", tag, marker))
	} else {
		lines = append(lines, fmt.Sprintf("%s WARNING: embed marker %s missing from post body", tag, marker))
	}
	return lines
}

func (s *Synchronizer) registered(taxonomy string) bool {
	for _, r := range s.cfg.Registered {
		if r == taxonomy {
			return true
		}
	}
	return false
}

// ApplyTags replaces the post's terms for every taxonomy with supplied
// terms. Unregistered taxonomies are reported and skipped.
func (s *Synchronizer) ApplyTags(ctx context.Context, postID int64, tags quiz.Tags) ([]string, error) {
	var difficulty []string
	if d := strings.TrimSpace(tags.Difficulty); d != "" {
		difficulty = []string{d}
	}
	sets := []struct {
		taxonomy string
		terms    []string
	}{
		{s.cfg.Taxonomies.Topic, tags.Topics},
		{s.cfg.Taxonomies.Difficulty, difficulty},
		{s.cfg.Taxonomies.Audience, tags.Audience},
	}

	var lines []string
	for _, set := range sets {
		terms := dedupe(set.terms)
		if len(terms) == 0 {
			continue
		}
		if !s.registered(set.taxonomy) {
			lines = append(lines, fmt.Sprintf("Taxonomy missing: %s (skipped %d term(s))", set.taxonomy, len(terms)))
			continue
		}
		if _, err := s.q.ExecContext(ctx, `DELETE FROM post_terms WHERE post_id=$1 AND taxonomy=$2`, postID, set.taxonomy); err != nil {
			return lines, fmt.Errorf("clear %s terms: %w", set.taxonomy, err)
		}
		for _, term := range terms {
			if _, err := s.q.ExecContext(ctx, `INSERT INTO post_terms (post_id, taxonomy, term) VALUES ($1,$2,$3)`,
				postID, set.taxonomy, term); err != nil {
				return lines, fmt.Errorf("assign %s term %q: %w", set.taxonomy, term, err)
			}
		}
		lines = append(lines, fmt.Sprintf("Applied %s: %s", set.taxonomy, strings.Join(terms, ", ")))
	}
	return lines, nil
}

// Terms lists the post's terms for one taxonomy.
func (s *Synchronizer) Terms(ctx context.Context, postID int64, taxonomy string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT term FROM post_terms WHERE post_id=$1 AND taxonomy=$2 ORDER BY term ASC`,
		postID, taxonomy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Tags reads back all three tag sets of a post.
func (s *Synchronizer) Tags(ctx context.Context, postID int64) (quiz.Tags, error) {
	var t quiz.Tags
	var err error
	if t.Topics, err = s.Terms(ctx, postID, s.cfg.Taxonomies.Topic); err != nil {
		return t, err
	}
	diff, err := s.Terms(ctx, postID, s.cfg.Taxonomies.Difficulty)
	if err != nil {
		return t, err
	}
	if len(diff) > 0 {
		t.Difficulty = diff[0]
	}
	t.Audience, err = s.Terms(ctx, postID, s.cfg.Taxonomies.Audience)
	return t, err
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
