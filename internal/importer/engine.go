package importer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iknowaviation/quizport/internal/cpt"
	"github.com/iknowaviation/quizport/internal/db"
	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/templates"
)

// DryRunQuizID stands in for a master row that a dry run would insert.
const DryRunQuizID int64 = -1

type TemplateGetter interface {
	Get(ctx context.Context, id string) (templates.Template, error)
}

// Archiver keeps a copy of every committed document.
type Archiver interface {
	Save(raw []byte, at time.Time) (string, error)
}

// Purger is the invalidation side of the defaults cache.
type Purger interface {
	Purge()
}

type Deps struct {
	DB         *sql.DB
	Quizzes    *quiz.SQLStore
	Posts      *cpt.Synchronizer
	Normalizer *Normalizer
	Templates  TemplateGetter
	Archive    Archiver
	Defaults   Purger
	Logger     *slog.Logger
}

// Engine runs uploaded documents through normalisation, validation,
// planning and either a dry run or one transaction for the whole batch.
type Engine struct {
	db         *sql.DB
	quizzes    *quiz.SQLStore
	posts      *cpt.Synchronizer
	normalizer *Normalizer
	templates  TemplateGetter
	archive    Archiver
	defaults   Purger
	logger     *slog.Logger
	now        func() time.Time
}

func NewEngine(d Deps) *Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Normalizer == nil {
		d.Normalizer = &Normalizer{}
	}
	return &Engine{
		db:         d.DB,
		quizzes:    d.Quizzes,
		posts:      d.Posts,
		normalizer: d.Normalizer,
		templates:  d.Templates,
		archive:    d.Archive,
		defaults:   d.Defaults,
		logger:     d.Logger,
		now:        time.Now,
	}
}

// Run always returns a Result; failures, including panics, are reported in
// it and any open transaction is rolled back.
func (e *Engine) Run(ctx context.Context, raw []byte, opts Options) (res Result) {
	res = Result{
		ID:     uuid.NewString(),
		DryRun: opts.Execution != ExecImport,
		At:     e.now().UTC(),
		Log:    []string{},
	}
	defer func() {
		if p := recover(); p != nil {
			e.fail(&res, fmt.Errorf("unexpected failure: %v", p))
		}
	}()

	norm, err := e.normalizer.Normalize(ctx, raw)
	if err != nil {
		e.fail(&res, err)
		return res
	}
	res.Log = append(res.Log, norm.Log...)

	plan := NewPlan(ResolveMode(opts.ReplaceMode, opts.LegacyReplace), opts.SyncPosts)
	res.Mode = plan.Mode
	res.logf("Replace mode: %s (requested %q, replace existing=%t, content sync=%t).",
		plan.Mode, opts.ReplaceMode, opts.LegacyReplace, opts.SyncPosts)

	payloads := norm.Payloads
	if err := e.prepare(ctx, payloads, plan, opts, &res); err != nil {
		e.fail(&res, err)
		return res
	}

	if res.DryRun {
		a := &applier{plan: plan, dry: true, quizzes: e.quizzes, posts: e.posts, res: &res}
		for i, p := range payloads {
			if err := a.apply(ctx, i, p); err != nil {
				e.fail(&res, err)
				return res
			}
		}
	} else {
		err := db.WithTx(ctx, e.db, nil, func(tx *sql.Tx) error {
			a := &applier{
				plan:    plan,
				tx:      tx,
				quizzes: e.quizzes.WithQuerier(tx),
				res:     &res,
			}
			if e.posts != nil {
				a.posts = e.posts.WithQuerier(tx)
			}
			for i, p := range payloads {
				if err := a.apply(ctx, i, p); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			res.Quizzes, res.Questions, res.Answers = 0, 0, 0
			res.logf("Transaction rolled back.")
			e.fail(&res, err)
			return res
		}
		if e.defaults != nil {
			e.defaults.Purge()
		}
		if e.archive != nil {
			key, err := e.archive.Save(raw, res.At)
			if err != nil {
				res.logf("WARNING: could not archive uploaded document: %v", err)
				e.logger.Warn("archive import document", "id", res.ID, "err", err)
			} else {
				res.Archive = key
			}
		}
	}

	res.Success = true
	res.Message = res.Summary()
	e.logger.Info("import finished", "id", res.ID, "mode", res.Mode, "dry_run", res.DryRun,
		"quizzes", res.Quizzes, "questions", res.Questions, "answers", res.Answers)
	return res
}

func (e *Engine) fail(res *Result, err error) {
	res.Success = false
	res.Message = err.Error()
	res.logf("ERROR: %s", err.Error())
	e.logger.Error("import failed", "id", res.ID, "dry_run", res.DryRun, "err", err)
}

// prepare applies the template and overrides, then validates every payload
// before anything is written.
func (e *Engine) prepare(ctx context.Context, payloads []quiz.Payload, plan Plan, opts Options, res *Result) error {
	var tpl *templates.Template
	if id := strings.TrimSpace(opts.TemplateID); id != "" && e.templates != nil {
		t, err := e.templates.Get(ctx, id)
		switch {
		case errors.Is(err, templates.ErrNotFound):
			res.logf("Template %q not found; continuing without a template.", id)
		case err != nil:
			return fmt.Errorf("load template %s: %w", id, err)
		default:
			tpl = &t
			res.logf("Applying template %q (variant %s, force=%t).", t.ID, variantOrDefault(opts.TemplateVariant), opts.ForceTemplate)
		}
	}

	for i := range payloads {
		p := &payloads[i]
		if p.Quiz != nil {
			if tpl != nil {
				templates.Apply(p.Quiz, *tpl, opts.TemplateVariant, opts.ForceTemplate)
			}
			if s := opts.OverrideDescription; strings.TrimSpace(s) != "" {
				p.Quiz.DescriptionHTML = quiz.StringPtr(s)
			}
			if s := opts.OverrideFinalScreen; strings.TrimSpace(s) != "" {
				p.Quiz.FinalScreenHTML = quiz.StringPtr(s)
			}
		}
		if err := Validate(*p, plan.Mode); err != nil {
			var ve *ValidationError
			if len(payloads) > 1 && errors.As(err, &ve) {
				return &ValidationError{
					Path: fmt.Sprintf("quizzes[%d].%s", i, ve.Path),
					Msg:  fmt.Sprintf("Quiz #%d: %s", i+1, ve.Msg),
				}
			}
			return err
		}
	}
	return nil
}

func variantOrDefault(v string) string {
	if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
		return v
	}
	return templates.DefaultVariant
}

// ContentHash fingerprints a payload for change detection on the post.
func ContentHash(p quiz.Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// applier performs the per-quiz steps of one run. In a dry run tx is nil
// and only reads reach the database.
type applier struct {
	plan    Plan
	dry     bool
	tx      *sql.Tx
	quizzes *quiz.SQLStore
	posts   *cpt.Synchronizer
	res     *Result
}

func (a *applier) apply(ctx context.Context, idx int, p quiz.Payload) error {
	res := a.res
	block := p.Quiz
	name := strings.TrimSpace(block.Name)
	res.logf("Quiz #%d: %q", idx+1, name)

	if p.HasQuestions() {
		block.ReuseQuestionsFrom = quiz.StringPtr("")
		if _, ok := block.Settings[quiz.ReuseKey]; ok {
			s := block.Settings.Clone()
			delete(s, quiz.ReuseKey)
			block.Settings = s
		}
		res.logf("Incoming questions present; reuse_questions_from cleared.")
	}

	existingID, err := a.quizzes.FindIDByName(ctx, name)
	if err != nil {
		return err
	}
	if existingID > 0 {
		res.logf("Existing quiz found (ID=%d).", existingID)
	} else {
		res.logf("No existing quiz found.")
	}

	quizID, err := a.master(ctx, existingID, *block)
	if err != nil {
		return err
	}
	if err := a.questions(ctx, existingID, quizID, p.Questions); err != nil {
		return err
	}

	postID := a.syncPost(ctx, quizID, name, p)
	a.applyTags(ctx, quizID, postID, p.EffectiveTags())

	res.Quizzes++
	return nil
}

func (a *applier) master(ctx context.Context, existingID int64, block quiz.QuizBlock) (int64, error) {
	res := a.res
	if !a.plan.NeedsMaster {
		if existingID == 0 {
			res.logf("Mode '%s' does not create master quiz rows; no quiz to update.", a.plan.Mode)
		} else {
			res.logf("Mode '%s' leaves master fields unchanged.", a.plan.Mode)
		}
		return existingID, nil
	}

	if existingID == 0 {
		if a.dry {
			res.logf("[Dry Run] Would insert new quiz master row (simulated quiz_id=%d for preview).", DryRunQuizID)
			return DryRunQuizID, nil
		}
		id, err := a.quizzes.InsertMaster(ctx, block)
		if err != nil {
			return 0, err
		}
		res.logf("Inserted new quiz master row (ID=%d).", id)
		return id, nil
	}

	if !a.plan.UpdateMaster {
		res.logf("Mode '%s' leaves master fields unchanged.", a.plan.Mode)
		return existingID, nil
	}
	if a.dry {
		res.logf("[Dry Run] Would update quiz master row (ID=%d).", existingID)
		return existingID, nil
	}
	updated, err := a.quizzes.UpdateMaster(ctx, existingID, block)
	if err != nil {
		return 0, err
	}
	if updated {
		res.logf("Updated quiz master row (ID=%d).", existingID)
	} else {
		res.logf("No whitelisted master fields to update (ID=%d).", existingID)
	}
	return existingID, nil
}

func (a *applier) questions(ctx context.Context, existingID, quizID int64, questions []quiz.Question) error {
	res := a.res
	if !a.plan.ReplaceQuestions || quizID == 0 {
		if a.plan.TouchQuestions {
			res.logf("Question import skipped (quiz missing or mode does not allow question changes).")
		} else {
			res.logf("No question changes in mode '%s'.", a.plan.Mode)
		}
		return nil
	}

	if existingID > 0 {
		if a.dry {
			stored, err := a.quizzes.ListQuestions(ctx, existingID)
			if err != nil {
				return err
			}
			res.logf("[Dry Run] Would delete %d existing question(s) and their answers.", len(stored))
		} else {
			n, err := a.quizzes.DeleteQuestions(ctx, existingID)
			if err != nil {
				return err
			}
			if n > 0 {
				res.logf("Deleted %d existing question(s) and their answers.", n)
			} else {
				res.logf("No existing questions found for quiz ID=%d.", existingID)
			}
		}
	}

	var nq, na int
	for i, q := range questions {
		sort := i + 1
		if q.SortOrder != nil {
			sort = *q.SortOrder
		}
		typ, tf, mapped := quiz.NormalizeInputType(q.AnswerType)
		if mapped && typ != q.AnswerType {
			res.logf("Question #%d answer_type %q mapped to %q.", i+1, q.AnswerType, typ)
		}
		q.AnswerType = typ
		if tf {
			q.TrueFalse = 1
		}
		nq++

		if a.dry {
			na += len(q.Answers)
			continue
		}
		qid, err := a.quizzes.InsertQuestion(ctx, quizID, q, sort)
		if err != nil {
			return fmt.Errorf("question #%d: %w", i+1, err)
		}
		for j, ans := range q.Answers {
			asort := j + 1
			if ans.SortOrder != nil {
				asort = *ans.SortOrder
			}
			if _, err := a.quizzes.InsertAnswer(ctx, qid, ans, asort); err != nil {
				return fmt.Errorf("question #%d answer #%d: %w", i+1, j+1, err)
			}
			na++
		}
	}

	if a.dry {
		res.logf("[Dry Run] Would insert %d question(s) and %d answer(s).", nq, na)
	} else {
		res.logf("Inserted %d question(s) and %d answer(s).", nq, na)
	}
	res.Questions += nq
	res.Answers += na
	return nil
}

// syncPost returns the post id the tag step should use, or 0. Failures are
// downgraded to warnings and undone through a savepoint.
func (a *applier) syncPost(ctx context.Context, quizID int64, name string, p quiz.Payload) int64 {
	res := a.res
	if !a.plan.SyncPosts || a.posts == nil {
		return 0
	}
	if quizID == DryRunQuizID {
		res.logf("[Dry Run] Would create a content post for the new quiz.")
		return 0
	}
	if quizID <= 0 {
		res.logf("Content post sync skipped: quiz not found.")
		return 0
	}
	if a.dry {
		postID, err := a.posts.FindLinked(ctx, quizID)
		switch {
		case err != nil:
			res.logf("WARNING: content post lookup failed: %v", err)
		case postID > 0:
			res.logf("[Dry Run] Would update content post (ID=%d) for quiz ID=%d.", postID, quizID)
		default:
			res.logf("[Dry Run] Would create a content post for quiz ID=%d.", quizID)
		}
		return postID
	}

	hash, err := ContentHash(p)
	if err != nil {
		res.logf("WARNING: content hash failed: %v", err)
		return 0
	}
	var postID int64
	var health []string
	err = db.WithSavepoint(ctx, a.tx, "content_sync", func() error {
		id, created, err := a.posts.Upsert(ctx, quizID, name, hash)
		if err != nil {
			return err
		}
		postID = id
		if created {
			res.logf("Created content post (ID=%d) for quiz ID=%d.", id, quizID)
		} else {
			res.logf("Updated content post (ID=%d) for quiz ID=%d.", id, quizID)
		}
		health = a.posts.HealthCheck(ctx, id, quizID)
		return nil
	})
	if err != nil {
		res.logf("WARNING: content post sync failed: %v", err)
		return 0
	}
	res.Log = append(res.Log, health...)
	return postID
}

func (a *applier) applyTags(ctx context.Context, quizID, postID int64, tags *quiz.Tags) {
	res := a.res
	if !a.plan.ApplyTags {
		return
	}
	if tags.IsEmpty() {
		res.logf("No tags supplied; tag step skipped.")
		return
	}
	if postID == 0 && quizID > 0 && a.posts != nil {
		id, err := a.posts.FindLinked(ctx, quizID)
		if err != nil {
			res.logf("WARNING: content post lookup failed: %v", err)
			return
		}
		postID = id
	}
	if postID == 0 {
		res.logf("Tags skipped: no content post linked to this quiz.")
		return
	}
	if a.dry {
		res.logf("[Dry Run] Would apply tags to content post (ID=%d).", postID)
		return
	}
	var lines []string
	err := db.WithSavepoint(ctx, a.tx, "content_tags", func() error {
		var err error
		lines, err = a.posts.ApplyTags(ctx, postID, *tags)
		return err
	})
	if err != nil {
		res.logf("WARNING: tag assignment failed: %v", err)
		return
	}
	res.Log = append(res.Log, lines...)
}
