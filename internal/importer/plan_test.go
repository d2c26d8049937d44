package importer_test

import (
	"testing"

	"github.com/iknowaviation/quizport/internal/importer"
)

func TestResolveMode(t *testing.T) {
	cases := []struct {
		raw    string
		legacy bool
		want   importer.Mode
	}{
		{"", false, importer.ModeNone},
		{"auto", false, importer.ModeNone},
		{"auto", true, importer.ModeAll},
		{"bogus", true, importer.ModeAll},
		{"ALL", false, importer.ModeAll},
		{"settings", true, importer.ModeSettings},
		{" tags ", false, importer.ModeTags},
		{"cpt", true, importer.ModeCPT},
		{"questions", false, importer.ModeQuestions},
		{"none", true, importer.ModeNone},
	}
	for _, c := range cases {
		if got := importer.ResolveMode(c.raw, c.legacy); got != c.want {
			t.Fatalf("ResolveMode(%q,%t) = %s, want %s", c.raw, c.legacy, got, c.want)
		}
	}
}

func TestNewPlan(t *testing.T) {
	cases := []struct {
		mode importer.Mode
		want importer.Plan
	}{
		{importer.ModeAll, importer.Plan{Mode: importer.ModeAll, NeedsMaster: true, UpdateMaster: true,
			ReplaceQuestions: true, TouchQuestions: true, ApplyTags: true}},
		{importer.ModeNone, importer.Plan{Mode: importer.ModeNone, NeedsMaster: true, UpdateMaster: true}},
		{importer.ModeSettings, importer.Plan{Mode: importer.ModeSettings, NeedsMaster: true, UpdateMaster: true}},
		{importer.ModeQuestions, importer.Plan{Mode: importer.ModeQuestions, NeedsMaster: true,
			ReplaceQuestions: true, TouchQuestions: true}},
		{importer.ModeTags, importer.Plan{Mode: importer.ModeTags, ApplyTags: true}},
		{importer.ModeCPT, importer.Plan{Mode: importer.ModeCPT}},
		{importer.ModeAuto, importer.Plan{Mode: importer.ModeNone, NeedsMaster: true, UpdateMaster: true}},
	}
	for _, c := range cases {
		if got := importer.NewPlan(c.mode, false); got != c.want {
			t.Fatalf("NewPlan(%s) = %+v, want %+v", c.mode, got, c.want)
		}
	}
	if p := importer.NewPlan(importer.ModeCPT, true); !p.SyncPosts {
		t.Fatalf("sync flag not carried into plan")
	}
}

func TestParseExecution(t *testing.T) {
	if importer.ParseExecution("IMPORT") != importer.ExecImport {
		t.Fatalf("import not recognised")
	}
	for _, s := range []string{"", "dry", "apply"} {
		if importer.ParseExecution(s) != importer.ExecDry {
			t.Fatalf("%q should default to dry", s)
		}
	}
}

func TestResultSummary(t *testing.T) {
	r := importer.Result{DryRun: true, Quizzes: 1, Mode: importer.ModeAll}
	if got := r.Summary(); got != "Dry Run complete: 1 quiz(es), 0 question(s), 0 answer(s). Mode=all." {
		t.Fatalf("summary = %q", got)
	}
	r = importer.Result{Quizzes: 2, Questions: 5, Answers: 20, Mode: importer.ModeQuestions}
	if got := r.Summary(); got != "Import complete: 2 quiz(es), 5 question(s), 20 answer(s). Mode=questions." {
		t.Fatalf("summary = %q", got)
	}
}
