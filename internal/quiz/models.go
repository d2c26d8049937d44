package quiz

// FieldState records whether an array-valued field was present in the
// uploaded document and, if so, whether it was actually an array.
type FieldState int

const (
	FieldAbsent FieldState = iota
	FieldList
	FieldMalformed
)

// Settings is the raw bag of quiz settings as uploaded. Values are JSON
// scalars; only keys known to a Schema are ever written to storage.
type Settings map[string]any

// Clone returns a shallow copy so merges never alias the caller's map.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type Tags struct {
	Topics     []string `json:"topics,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Audience   []string `json:"audience,omitempty"`
}

func (t *Tags) IsEmpty() bool {
	return t == nil || (len(t.Topics) == 0 && t.Difficulty == "" && len(t.Audience) == 0)
}

// QuizBlock is the "quiz" object of a canonical payload. Pointer fields
// distinguish "not supplied" from "supplied but empty".
type QuizBlock struct {
	Name               string   `json:"name"`
	DescriptionHTML    *string  `json:"description_html,omitempty"`
	FinalScreenHTML    *string  `json:"final_screen_html,omitempty"`
	ReuseQuestionsFrom *string  `json:"reuse_questions_from,omitempty"`
	Settings           Settings `json:"settings,omitempty"`
	Tags               *Tags    `json:"tags,omitempty"`
}

type Question struct {
	Title                string     `json:"title,omitempty"`
	QuestionHTML         string     `json:"question_html"`
	AnswerType           string     `json:"answer_type"`
	SortOrder            *int       `json:"sort_order,omitempty"`
	ExplainAnswerHTML    string     `json:"explain_answer_html"`
	DontRandomizeAnswers int        `json:"dont_randomize_answers"`
	TrueFalse            int        `json:"truefalse"`
	Answers              []Answer   `json:"answers"`
	AnswersState         FieldState `json:"-"`
}

type Answer struct {
	AnswerHTML string   `json:"answer_html"`
	Correct    int      `json:"correct"`
	Point      float64  `json:"point"`
	SortOrder  *int     `json:"sort_order,omitempty"`

	// ExplanationHTML is only carried so validation can reject it.
	ExplanationHTML string `json:"explanation_html,omitempty"`
}

// Payload is one canonical per-quiz import document.
type Payload struct {
	Quiz           *QuizBlock `json:"quiz"`
	Questions      []Question `json:"questions"`
	Tags           *Tags      `json:"tags,omitempty"`
	QuestionsState FieldState `json:"-"`
}

func (p Payload) HasQuestions() bool { return len(p.Questions) > 0 }

// EffectiveTags prefers the top-level tags block and falls back to quiz.tags.
func (p Payload) EffectiveTags() *Tags {
	if p.Tags != nil {
		return p.Tags
	}
	if p.Quiz != nil {
		return p.Quiz.Tags
	}
	return nil
}

// Master is a persisted quiz master row.
type Master struct {
	ID                 int64
	Name               string
	Description        string
	FinalScreen        string
	ReuseQuestionsFrom string
	AddedOn            int64
	Settings           Settings
}

type MasterSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StoredQuestion struct {
	ID                   int64
	QuizID               int64
	Title                string
	QuestionHTML         string
	AnswerType           string
	SortOrder            int
	ExplainAnswer        string
	DontRandomizeAnswers int
	TrueFalse            int
}

type StoredAnswer struct {
	ID          int64
	QuestionID  int64
	AnswerHTML  string
	Correct     int
	Point       float64
	SortOrder   int
	Explanation *string
}

// Defaults is the whitelist view of a master row used to seed new quizzes,
// templates and builder documents.
type Defaults struct {
	Settings        Settings `json:"settings"`
	DescriptionHTML string   `json:"description_html"`
	FinalScreenHTML string   `json:"final_screen_html"`
}

func StringPtr(s string) *string { return &s }
