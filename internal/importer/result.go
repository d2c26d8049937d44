package importer

import (
	"fmt"
	"strings"
	"time"
)

// Execution selects between simulation and a transactional write.
type Execution string

const (
	ExecDry    Execution = "dry"
	ExecImport Execution = "import"
)

// ParseExecution defaults to a dry run for anything but "import".
func ParseExecution(s string) Execution {
	if strings.EqualFold(strings.TrimSpace(s), string(ExecImport)) {
		return ExecImport
	}
	return ExecDry
}

// Options are the operator parameters submitted with a document.
type Options struct {
	Execution           Execution
	ReplaceMode         string
	LegacyReplace       bool
	SyncPosts           bool
	TemplateID          string
	TemplateVariant     string
	ForceTemplate       bool
	OverrideDescription string
	OverrideFinalScreen string
}

// Result is the terminal outcome of one import run.
type Result struct {
	ID        string    `json:"id"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Log       []string  `json:"log"`
	Quizzes   int       `json:"quizzes"`
	Questions int       `json:"questions"`
	Answers   int       `json:"answers"`
	Mode      Mode      `json:"mode"`
	DryRun    bool      `json:"dry_run"`
	Archive   string    `json:"archive,omitempty"`
	At        time.Time `json:"at"`
}

// Summary renders the one-line success message.
func (r Result) Summary() string {
	prefix := "Import complete"
	if r.DryRun {
		prefix = "Dry Run complete"
	}
	return fmt.Sprintf("%s: %d quiz(es), %d question(s), %d answer(s). Mode=%s.",
		prefix, r.Quizzes, r.Questions, r.Answers, r.Mode)
}

func (r *Result) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}
