package importer_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/iknowaviation/quizport/internal/cache"
	"github.com/iknowaviation/quizport/internal/cpt"
	"github.com/iknowaviation/quizport/internal/export"
	"github.com/iknowaviation/quizport/internal/importer"
	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/storage"
	"github.com/iknowaviation/quizport/internal/templates"
	"github.com/iknowaviation/quizport/internal/testutil"
)

type harness struct {
	t         testing.TB
	db        *sql.DB
	engine    *importer.Engine
	quizzes   *quiz.SQLStore
	posts     *cpt.Synchronizer
	templates *templates.SQLStore
	defaults  *cache.ReadThrough[int64, quiz.Defaults]
	archive   storage.Archive
}

func newHarness(t testing.TB) *harness {
	t.Helper()
	d := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		t:         t,
		db:        d,
		quizzes:   quiz.NewSQLStore(d, nil),
		posts:     cpt.New(d, cpt.DefaultConfig(), logger),
		templates: templates.NewSQLStore(d),
	}
	defaults, err := cache.New[int64, quiz.Defaults](16, 0, h.quizzes.MasterDefaults)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	h.defaults = defaults
	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	h.archive = storage.Archive{Blobs: blobs}
	h.engine = importer.NewEngine(importer.Deps{
		DB:         d,
		Quizzes:    h.quizzes,
		Posts:      h.posts,
		Normalizer: &importer.Normalizer{Defaults: defaults.Get, BaseQuizID: 6},
		Templates:  h.templates,
		Archive:    h.archive,
		Defaults:   defaults,
		Logger:     logger,
	})
	return h
}

func (h *harness) run(doc string, opts importer.Options) importer.Result {
	h.t.Helper()
	return h.engine.Run(context.Background(), []byte(doc), opts)
}

func (h *harness) mustImport(doc string, mode string) importer.Result {
	h.t.Helper()
	res := h.run(doc, importer.Options{Execution: importer.ExecImport, ReplaceMode: mode})
	if !res.Success {
		h.t.Fatalf("import failed: %s\n%s", res.Message, strings.Join(res.Log, "\n"))
	}
	return res
}

func (h *harness) masterCount() int {
	h.t.Helper()
	var n int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM quiz_master`).Scan(&n); err != nil {
		h.t.Fatalf("count masters: %v", err)
	}
	return n
}

func (h *harness) quizID(name string) int64 {
	h.t.Helper()
	id, err := h.quizzes.FindIDByName(context.Background(), name)
	if err != nil || id == 0 {
		h.t.Fatalf("quiz %q not found (%v)", name, err)
	}
	return id
}

func hasLine(log []string, substr string) bool {
	for _, l := range log {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

const weatherDoc = `{
	"quiz": {
		"name": "Weather Basics",
		"description_html": "<p>Clouds and fronts</p>",
		"settings": {"is_active": 1, "require_login": true, "mode": "live", "time_limit": 30, "junk": "x"}
	},
	"questions": [
		{"question_html": "<p>Which cloud brings thunder?</p>", "answer_type": "single",
		 "explain_answer_html": "<p>Cumulonimbus.</p>",
		 "answers": [{"answer_html": "Cumulonimbus", "correct": 1}, {"answer_html": "Cirrus"}]},
		{"question_html": "<p>Pick the fronts</p>", "answer_type": "multi",
		 "explain_answer_html": "<p>Both are fronts.</p>",
		 "answers": [{"answer_html": "Cold", "correct": 1}, {"answer_html": "Warm", "correct": 1}, {"answer_html": "Sea"}]}
	]
}`

func TestCommitAllPersistsQuestions(t *testing.T) {
	h := newHarness(t)
	res := h.mustImport(weatherDoc, "all")
	if res.Quizzes != 1 || res.Questions != 2 || res.Answers != 5 {
		t.Fatalf("counts = %d/%d/%d", res.Quizzes, res.Questions, res.Answers)
	}
	if res.Message != "Import complete: 1 quiz(es), 2 question(s), 5 answer(s). Mode=all." {
		t.Fatalf("message = %q", res.Message)
	}

	ctx := context.Background()
	id := h.quizID("Weather Basics")
	qs, err := h.quizzes.ListQuestions(ctx, id)
	if err != nil || len(qs) != 2 {
		t.Fatalf("questions = %d, %v", len(qs), err)
	}
	if qs[0].AnswerType != quiz.InputRadio || qs[1].AnswerType != quiz.InputCheckbox {
		t.Fatalf("answer types not mapped: %q %q", qs[0].AnswerType, qs[1].AnswerType)
	}
	for _, q := range qs {
		if strings.TrimSpace(q.ExplainAnswer) == "" {
			t.Fatalf("question %d stored without explanation", q.ID)
		}
		as, _ := h.quizzes.ListAnswers(ctx, q.ID)
		for _, a := range as {
			if a.Explanation != nil {
				t.Fatalf("answer %d has explanation %q", a.ID, *a.Explanation)
			}
		}
	}
	m, _ := h.quizzes.GetMaster(ctx, id)
	if m.Settings["time_limit"] != "30" || m.Settings["require_login"] != int64(1) {
		t.Fatalf("settings not persisted: %v", m.Settings)
	}
}

func TestReimportReplacesQuestions(t *testing.T) {
	h := newHarness(t)
	h.mustImport(weatherDoc, "all")
	h.mustImport(weatherDoc, "all")

	id := h.quizID("Weather Basics")
	if n, _ := h.quizzes.CountQuestions(context.Background(), id); n != 2 {
		t.Fatalf("questions after reimport = %d, want 2", n)
	}
	if h.masterCount() != 1 {
		t.Fatalf("reimport created a second master row")
	}
}

func TestDryRunBasicsWritesNothing(t *testing.T) {
	h := newHarness(t)
	res := h.run(`{"quiz":{"name":"Basics"},"questions":[]}`, importer.Options{ReplaceMode: "all"})
	if !res.Success || !res.DryRun {
		t.Fatalf("dry run failed: %s", res.Message)
	}
	if res.Message != "Dry Run complete: 1 quiz(es), 0 question(s), 0 answer(s). Mode=all." {
		t.Fatalf("message = %q", res.Message)
	}
	if !hasLine(res.Log, "simulated quiz_id=-1") {
		t.Fatalf("missing sentinel line: %v", res.Log)
	}
	if h.masterCount() != 0 {
		t.Fatalf("dry run created rows")
	}
	if res.Archive != "" {
		t.Fatalf("dry run must not archive")
	}
}

func TestDryRunThenCommitMatchesCommitOnce(t *testing.T) {
	a := newHarness(t)
	b := newHarness(t)

	a.mustImport(weatherDoc, "all")
	before, _ := a.quizzes.GetMaster(context.Background(), a.quizID("Weather Basics"))
	res := a.run(weatherDoc, importer.Options{ReplaceMode: "all"})
	if !res.Success || res.Questions != 2 || res.Answers != 5 {
		t.Fatalf("dry run on existing quiz: %+v", res)
	}
	if !hasLine(res.Log, "[Dry Run] Would delete 2 existing question(s)") {
		t.Fatalf("dry run did not preview the delete: %v", res.Log)
	}
	after, _ := a.quizzes.GetMaster(context.Background(), a.quizID("Weather Basics"))
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("dry run altered the master row")
	}

	dry := b.run(weatherDoc, importer.Options{ReplaceMode: "all"})
	if !dry.Success || b.masterCount() != 0 {
		t.Fatalf("dry run wrote rows or failed: %s", dry.Message)
	}
	b.mustImport(weatherDoc, "all")

	ctx := context.Background()
	ma, _ := a.quizzes.GetMaster(ctx, a.quizID("Weather Basics"))
	mb, _ := b.quizzes.GetMaster(ctx, b.quizID("Weather Basics"))
	if !reflect.DeepEqual(ma.Settings, mb.Settings) || ma.Description != mb.Description {
		t.Fatalf("state diverged:\n%v\n%v", ma.Settings, mb.Settings)
	}
	na, _ := a.quizzes.CountAnswers(ctx, ma.ID)
	nb, _ := b.quizzes.CountAnswers(ctx, mb.ID)
	if na != nb {
		t.Fatalf("answer counts diverged: %d vs %d", na, nb)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newHarness(t)
	src.mustImport(weatherDoc, "all")
	ctx := context.Background()
	id := src.quizID("Weather Basics")

	doc, err := export.New(src.quizzes, nil, src.posts).Export(ctx, id)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	dst := newHarness(t)
	dst.mustImport(string(raw), "all")
	id2 := dst.quizID("Weather Basics")

	m1, _ := src.quizzes.GetMaster(ctx, id)
	m2, _ := dst.quizzes.GetMaster(ctx, id2)
	if !reflect.DeepEqual(m1.Settings, m2.Settings) {
		t.Fatalf("settings changed across round trip:\n%v\n%v", m1.Settings, m2.Settings)
	}
	q1, _ := src.quizzes.CountQuestions(ctx, id)
	q2, _ := dst.quizzes.CountQuestions(ctx, id2)
	a1, _ := src.quizzes.CountAnswers(ctx, id)
	a2, _ := dst.quizzes.CountAnswers(ctx, id2)
	if q1 != q2 || a1 != a2 {
		t.Fatalf("counts changed: %d/%d vs %d/%d", q1, a1, q2, a2)
	}
}

func TestIncomingQuestionsClearReusePointer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id, err := h.quizzes.InsertMaster(ctx, quiz.QuizBlock{
		Name:               "Weather Basics",
		ReuseQuestionsFrom: quiz.StringPtr("12"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	res := h.mustImport(weatherDoc, "all")
	if !hasLine(res.Log, "reuse_questions_from cleared") {
		t.Fatalf("missing reuse log line: %v", res.Log)
	}
	m, _ := h.quizzes.GetMaster(ctx, id)
	if m.ReuseQuestionsFrom != "" {
		t.Fatalf("reuse pointer survived: %q", m.ReuseQuestionsFrom)
	}
}

func TestTagsModeWithoutPostSkips(t *testing.T) {
	h := newHarness(t)
	res := h.run(`{"quiz":{"name":"Fresh"},"tags":{"topics":["wx"]}}`,
		importer.Options{Execution: importer.ExecImport, ReplaceMode: "tags"})
	if !res.Success {
		t.Fatalf("tags mode failed: %s", res.Message)
	}
	if !hasLine(res.Log, "Tags skipped: no content post linked to this quiz.") {
		t.Fatalf("missing skip line: %v", res.Log)
	}
	if h.masterCount() != 0 {
		t.Fatalf("tags mode created a master row")
	}
}

func TestAutoModeFollowsLegacyFlag(t *testing.T) {
	h := newHarness(t)
	off := h.run(weatherDoc, importer.Options{ReplaceMode: "auto"})
	on := h.run(weatherDoc, importer.Options{ReplaceMode: "auto", LegacyReplace: true})
	if off.Mode != importer.ModeNone || on.Mode != importer.ModeAll {
		t.Fatalf("modes = %s / %s", off.Mode, on.Mode)
	}
	none := h.run(weatherDoc, importer.Options{ReplaceMode: "none"})
	if off.Questions != none.Questions || off.Quizzes != none.Quizzes {
		t.Fatalf("auto(off) differs from none: %+v vs %+v", off, none)
	}
	all := h.run(weatherDoc, importer.Options{ReplaceMode: "all"})
	if on.Questions != all.Questions || on.Answers != all.Answers {
		t.Fatalf("auto(on) differs from all: %+v vs %+v", on, all)
	}
}

func TestUnsupportedVersionFailsInEveryMode(t *testing.T) {
	h := newHarness(t)
	for _, mode := range []string{"auto", "none", "all", "settings", "questions", "tags", "cpt"} {
		res := h.run(`{"version":"2.0","quizzes":[]}`, importer.Options{Execution: importer.ExecImport, ReplaceMode: mode})
		if res.Success || !strings.Contains(strings.ToLower(res.Message), "unsupported schema version") {
			t.Fatalf("mode %s: %+v", mode, res)
		}
	}
}

func TestAnswerExplanationRejectedBeforeWrites(t *testing.T) {
	h := newHarness(t)
	doc := `{"quiz":{"name":"Bad"},"questions":[{"question_html":"q","answer_type":"radio",
		"explain_answer_html":"e","answers":[{"answer_html":"a","explanation_html":"no"}]}]}`
	res := h.run(doc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "all"})
	if res.Success || !strings.Contains(res.Message, "includes explanation_html") {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	if !hasLine(res.Log, "ERROR: ") {
		t.Fatalf("missing ERROR line: %v", res.Log)
	}
	if h.masterCount() != 0 {
		t.Fatalf("rows written despite validation failure")
	}
}

func TestMultipleCorrectAnswersAccepted(t *testing.T) {
	h := newHarness(t)
	doc := `{"quiz":{"name":"Lenient"},"questions":[{"question_html":"q","answer_type":"radio",
		"explain_answer_html":"e","answers":[{"answer_html":"a","correct":1},{"answer_html":"b","correct":1}]}]}`
	res := h.mustImport(doc, "all")
	if res.Answers != 2 {
		t.Fatalf("answers = %d", res.Answers)
	}
}

func TestCommitFailureRollsBackBatch(t *testing.T) {
	h := newHarness(t)
	if _, err := h.db.Exec(`DROP TABLE quiz_answer`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	res := h.run(weatherDoc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "all"})
	if res.Success {
		t.Fatalf("expected failure")
	}
	if !hasLine(res.Log, "Transaction rolled back.") {
		t.Fatalf("missing rollback line: %v", res.Log)
	}
	if res.Quizzes != 0 || res.Questions != 0 || res.Answers != 0 {
		t.Fatalf("counts not reset: %+v", res)
	}
	if h.masterCount() != 0 {
		t.Fatalf("master row survived rollback")
	}
}

func TestVersionedBatchImportsEveryQuiz(t *testing.T) {
	h := newHarness(t)
	doc := `{"version":"1.0","quizzes":[
		{"quiz_title":"One","questions":[{"q":"q","explanation":"e","choices":[{"a":"x","correct":true}]}]},
		{"quiz_title":"Two","questions":[{"q":"q","explanation":"e","choices":[{"a":"x"}]}]}
	]}`
	res := h.mustImport(doc, "all")
	if res.Quizzes != 2 || res.Questions != 2 || res.Answers != 2 {
		t.Fatalf("counts = %+v", res)
	}
	ctx := context.Background()
	m, _ := h.quizzes.GetMaster(ctx, h.quizID("Two"))
	if m.Settings[quiz.TakeAgainKey] != int64(1) {
		t.Fatalf("take_again not forced: %v", m.Settings)
	}
	if !hasLine(res.Log, "Converted versioned quiz #2") {
		t.Fatalf("conversion not logged: %v", res.Log)
	}
}

func TestOverridesApplyToEveryQuiz(t *testing.T) {
	h := newHarness(t)
	doc := `{"version":"1.0","quizzes":[
		{"quiz_title":"One","questions":[{"q":"q1","explanation":"e","choices":[{"a":"x","correct":1}]}]},
		{"quiz_title":"Two","questions":[{"q":"q2","explanation":"e","choices":[{"a":"y","correct":1}]}]}
	]}`
	res := h.run(doc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "all",
		OverrideDescription: "<p>same for all</p>"})
	if !res.Success {
		t.Fatalf("import failed: %s", res.Message)
	}
	if got, _ := h.quizzes.GetMaster(context.Background(), h.quizID("Two")); got.Description != "<p>same for all</p>" {
		t.Fatalf("override not applied: %q", got.Description)
	}
}

func TestVersionedBatchRejectedBeforeWrites(t *testing.T) {
	h := newHarness(t)
	doc := `{"version":"1.0","quizzes":[
		{"quiz_title":"One","questions":[{"q":"q","explanation":"e","choices":[{"a":"x","correct":1}]}]},
		{"quiz_title":"Two","questions":[{"q":"q","explanation":"e","choices":[]}]}
	]}`
	// settings mode never looks at answers; empty choices must still fail.
	res := h.run(doc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "settings"})
	if res.Success || res.Message != "Missing choices array at quizzes[1].questions[0]" {
		t.Fatalf("message = %q", res.Message)
	}
	if h.masterCount() != 0 {
		t.Fatalf("first quiz written although the batch was invalid")
	}
}

func TestTemplateApplied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.templates.Save(ctx, templates.Template{
		ID:                  "wx",
		Name:                "Weather",
		Settings:            quiz.Settings{"mode": "practice", "time_limit": "90"},
		DescriptionVariants: map[string]string{"A": "<p>A</p>", "B": "<p>B</p>"},
		FinalScreenHTML:     "<p>tpl final</p>",
	}); err != nil {
		t.Fatalf("save template: %v", err)
	}

	doc := `{"quiz":{"name":"Templated","settings":{"mode":"exam"}},"questions":[]}`
	res := h.run(doc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "all",
		TemplateID: "wx", TemplateVariant: "b"})
	if !res.Success {
		t.Fatalf("import failed: %s", res.Message)
	}
	m, _ := h.quizzes.GetMaster(ctx, h.quizID("Templated"))
	if m.Settings["mode"] != "exam" || m.Settings["time_limit"] != "90" || m.Settings["take_again"] != int64(1) {
		t.Fatalf("template merge wrong: %v", m.Settings)
	}
	if m.Description != "<p>B</p>" || m.FinalScreen != "<p>tpl final</p>" {
		t.Fatalf("template content wrong: %q %q", m.Description, m.FinalScreen)
	}

	doc = `{"quiz":{"name":"Templated","description_html":"<p>mine</p>"},"questions":[]}`
	res = h.run(doc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "settings",
		TemplateID: "wx", ForceTemplate: true})
	if !res.Success {
		t.Fatalf("import failed: %s", res.Message)
	}
	m, _ = h.quizzes.GetMaster(ctx, h.quizID("Templated"))
	if m.Description != "<p>A</p>" {
		t.Fatalf("force did not overwrite: %q", m.Description)
	}

	res = h.run(doc, importer.Options{ReplaceMode: "settings", TemplateID: "missing"})
	if !res.Success || !hasLine(res.Log, `Template "missing" not found`) {
		t.Fatalf("missing template should be logged and ignored: %+v", res)
	}
}

func TestSyncPostsAndTags(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := `{"quiz":{"name":"Synced","tags":{"topics":["wx","wx","metar"],"difficulty":"easy"}},"questions":[]}`
	opts := importer.Options{Execution: importer.ExecImport, ReplaceMode: "all", SyncPosts: true}

	res := h.run(doc, opts)
	if !res.Success {
		t.Fatalf("import failed: %s", res.Message)
	}
	id := h.quizID("Synced")
	postID, err := h.posts.FindLinked(ctx, id)
	if err != nil || postID == 0 {
		t.Fatalf("post not linked: %d %v", postID, err)
	}
	if !hasLine(res.Log, "Created content post") || !hasLine(res.Log, "[Content Health]") {
		t.Fatalf("sync not logged: %v", res.Log)
	}
	p, _ := h.posts.GetPost(ctx, postID)
	if !strings.Contains(p.Content, h.posts.Config().Marker(id)) || p.Status != cpt.StatusPublish {
		t.Fatalf("post = %+v", p)
	}
	hash, ok, _ := h.posts.Meta(ctx, postID, h.posts.Config().HashMetaKey)
	if !ok || len(hash) != 64 {
		t.Fatalf("hash meta = %q", hash)
	}
	tags, _ := h.posts.Tags(ctx, postID)
	if len(tags.Topics) != 2 || tags.Difficulty != "easy" {
		t.Fatalf("tags = %+v", tags)
	}

	res = h.run(doc, opts)
	if !hasLine(res.Log, "Updated content post") {
		t.Fatalf("second sync should update: %v", res.Log)
	}
	if again, _ := h.posts.FindLinked(ctx, id); again != postID {
		t.Fatalf("second sync created a new post")
	}
}

func TestContentSyncFailureKeepsQuizWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, stmt := range []string{`DROP TABLE post_terms`, `DROP TABLE postmeta`} {
		if _, err := h.db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	res := h.run(weatherDoc, importer.Options{Execution: importer.ExecImport, ReplaceMode: "all", SyncPosts: true})
	if !res.Success {
		t.Fatalf("sync failure must not fail the import: %s", res.Message)
	}
	if !hasLine(res.Log, "WARNING: content post sync failed") {
		t.Fatalf("missing sync warning: %v", res.Log)
	}
	n, err := h.quizzes.CountQuestions(ctx, h.quizID("Weather Basics"))
	if err != nil || n != 2 {
		t.Fatalf("questions = %d (%v), want 2", n, err)
	}
	var posts int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&posts); err != nil || posts != 0 {
		t.Fatalf("posts = %d (%v), want 0", posts, err)
	}
}

func TestCommitArchivesAndPurgesDefaults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.defaults.Get(ctx, 6); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if h.defaults.Len() != 1 {
		t.Fatalf("cache not warmed")
	}
	res := h.mustImport(weatherDoc, "all")
	if h.defaults.Len() != 0 {
		t.Fatalf("defaults cache not purged after commit")
	}
	if res.Archive == "" {
		t.Fatalf("document not archived")
	}
	raw, err := h.archive.Load(res.Archive)
	if err != nil || string(raw) != weatherDoc {
		t.Fatalf("archive load = %v", err)
	}
	if res.ID == "" {
		t.Fatalf("result has no id")
	}
}
