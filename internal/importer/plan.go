package importer

import "strings"

// Mode is the operator-selected replace policy.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeNone      Mode = "none"
	ModeAll       Mode = "all"
	ModeSettings  Mode = "settings"
	ModeQuestions Mode = "questions"
	ModeTags      Mode = "tags"
	ModeCPT       Mode = "cpt"
)

// ParseMode lower-cases raw and falls back to auto for anything unknown.
func ParseMode(raw string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeAuto, ModeNone, ModeAll, ModeSettings, ModeQuestions, ModeTags, ModeCPT:
		return m
	default:
		return ModeAuto
	}
}

// ResolveMode turns auto into all or none depending on the legacy
// replace-existing checkbox.
func ResolveMode(raw string, legacyReplace bool) Mode {
	m := ParseMode(raw)
	if m != ModeAuto {
		return m
	}
	if legacyReplace {
		return ModeAll
	}
	return ModeNone
}

// TouchesQuestions reports whether the mode validates and rewrites questions.
func (m Mode) TouchesQuestions() bool { return m == ModeAll || m == ModeQuestions }

// Plan is the concrete set of actions an import will take for every quiz.
type Plan struct {
	Mode             Mode
	NeedsMaster      bool // create the master row when missing
	UpdateMaster     bool
	ReplaceQuestions bool
	TouchQuestions   bool
	SyncPosts        bool
	ApplyTags        bool
}

// NewPlan derives the action flags for an already resolved mode.
func NewPlan(m Mode, syncEnabled bool) Plan {
	p := Plan{Mode: m, SyncPosts: syncEnabled}
	switch m {
	case ModeAll:
		p.NeedsMaster, p.UpdateMaster, p.ReplaceQuestions, p.TouchQuestions, p.ApplyTags = true, true, true, true, true
	case ModeSettings:
		p.NeedsMaster, p.UpdateMaster = true, true
	case ModeQuestions:
		p.NeedsMaster, p.ReplaceQuestions, p.TouchQuestions = true, true, true
	case ModeTags:
		p.ApplyTags = true
	case ModeCPT:
	default:
		p.Mode = ModeNone
		p.NeedsMaster, p.UpdateMaster = true, true
	}
	return p
}
