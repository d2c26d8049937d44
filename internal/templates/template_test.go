package templates_test

import (
	"strings"
	"testing"

	"github.com/iknowaviation/quizport/internal/quiz"
	"github.com/iknowaviation/quizport/internal/templates"
)

func TestApplyPayloadWins(t *testing.T) {
	tpl := templates.Template{
		Settings:            quiz.Settings{"mode": "practice", "time_limit": "60", "take_again": 0},
		DescriptionVariants: map[string]string{"A": "<p>A</p>", "C": "<p>C</p>"},
		FinalScreenHTML:     "<p>final</p>",
	}
	block := &quiz.QuizBlock{
		Name:            "x",
		DescriptionHTML: quiz.StringPtr("<p>mine</p>"),
		Settings:        quiz.Settings{"mode": "exam"},
	}
	templates.Apply(block, tpl, "c", false)

	if block.Settings["mode"] != "exam" || block.Settings["time_limit"] != "60" {
		t.Fatalf("merge wrong: %v", block.Settings)
	}
	if quiz.BoolInt(block.Settings["take_again"]) != 1 {
		t.Fatalf("take_again must be forced on")
	}
	if *block.DescriptionHTML != "<p>mine</p>" {
		t.Fatalf("payload description overwritten without force")
	}
	if block.FinalScreenHTML == nil || *block.FinalScreenHTML != "<p>final</p>" {
		t.Fatalf("final screen not filled from template")
	}
	if tpl.Settings["take_again"] != 0 {
		t.Fatalf("Apply mutated the template settings")
	}
}

func TestApplyForce(t *testing.T) {
	tpl := templates.Template{DescriptionVariants: map[string]string{"A": "<p>A</p>"}}
	block := &quiz.QuizBlock{Name: "x", DescriptionHTML: quiz.StringPtr("<p>mine</p>")}
	templates.Apply(block, tpl, "Z", true)
	if *block.DescriptionHTML != "<p>A</p>" {
		t.Fatalf("missing variant should fall back to A, got %q", *block.DescriptionHTML)
	}
	if block.FinalScreenHTML != nil {
		t.Fatalf("empty template final screen must not be applied")
	}
}

func TestParseVariants(t *testing.T) {
	got := templates.ParseVariants("A: <p>first</p>\n---\nb: <p>second</p>\r\n---\n\n")
	if got["A"] != "<p>first</p>" || got["B"] != "<p>second</p>" || len(got) != 2 {
		t.Fatalf("delimited = %v", got)
	}

	got = templates.ParseVariants(`{"a": "<p>x</p>", "B": "", "c": "<p>z</p>"}`)
	if got["A"] != "<p>x</p>" || got["C"] != "<p>z</p>" || len(got) != 2 {
		t.Fatalf("json = %v", got)
	}

	got = templates.ParseVariants("<p>plain</p>\n---\n<p>dropped</p>")
	if got["A"] != "<p>plain</p>" || len(got) != 1 {
		t.Fatalf("unkeyed = %v", got)
	}

	if got := templates.ParseVariants("  "); len(got) != 0 {
		t.Fatalf("blank = %v", got)
	}
}

func TestCaptureAndIDs(t *testing.T) {
	d := quiz.Defaults{Settings: quiz.Settings{"mode": "live"}, DescriptionHTML: "<p>d</p>", FinalScreenHTML: "<p>f</p>"}
	tpl := templates.Capture("", "From 6", 6, d)
	if !strings.HasPrefix(tpl.ID, "tpl_") || len(tpl.ID) != 12 {
		t.Fatalf("id = %q", tpl.ID)
	}
	if tpl.Variant("") != "<p>d</p>" || tpl.FinalScreenHTML != "<p>f</p>" || tpl.SourceQuizID != 6 {
		t.Fatalf("capture = %+v", tpl)
	}
	if _, ok := d.Settings["take_again"]; ok {
		t.Fatalf("Capture mutated the defaults")
	}
	if got := tpl.Letters(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("letters = %v", got)
	}
}
