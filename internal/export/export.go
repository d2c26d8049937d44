// Package export turns stored quizzes back into import documents and
// generates starter documents for hand authoring.
package export

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iknowaviation/quizport/internal/quiz"
)

const (
	NoteEmpty  = "No questions found for the exported source exam_id. This quiz may be empty or the source exam_id may be incorrect."
	NoteReused = "This quiz reuses questions. Export pulled questions from the source exam_id instead of the selected quiz ID."
)

// Block is the exported quiz object with its effective question source.
type Block struct {
	quiz.QuizBlock
	SourceExamID int64 `json:"_export_source_exam_id,omitempty"`
}

// Document is an import-compatible JSON document.
type Document struct {
	Quiz      Block           `json:"quiz"`
	Questions []quiz.Question `json:"questions"`
	Note      string          `json:"_export_note,omitempty"`
}

// TagReader resolves the tags of a quiz's content post.
type TagReader interface {
	FindLinked(ctx context.Context, quizID int64) (int64, error)
	Tags(ctx context.Context, postID int64) (quiz.Tags, error)
}

type Exporter struct {
	Quizzes quiz.Store
	Schema  *quiz.Schema
	Posts   TagReader
}

func New(store quiz.Store, schema *quiz.Schema, posts TagReader) *Exporter {
	if schema == nil {
		schema = quiz.DefaultSchema
	}
	return &Exporter{Quizzes: store, Schema: schema, Posts: posts}
}

var digitRun = regexp.MustCompile(`\d+`)

// ParseReusePointer reads a stored reuse pointer. Pure digits are the id;
// otherwise the first digit run is used. Empty or "0" means none.
func ParseReusePointer(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id < 0 {
			return 0
		}
		return id
	}
	m := digitRun.FindString(s)
	if m == "" {
		return 0
	}
	id, _ := strconv.ParseInt(m, 10, 64)
	return id
}

func (x *Exporter) Export(ctx context.Context, quizID int64) (Document, error) {
	m, err := x.Quizzes.GetMaster(ctx, quizID)
	if err != nil {
		return Document{}, err
	}

	source := quizID
	reused := false
	if ptr := ParseReusePointer(m.ReuseQuestionsFrom); ptr > 0 {
		source = ptr
		reused = true
	}

	stored, err := x.Quizzes.ListQuestions(ctx, source)
	if err != nil {
		return Document{}, err
	}
	questions := make([]quiz.Question, 0, len(stored))
	for _, sq := range stored {
		answers, err := x.Quizzes.ListAnswers(ctx, sq.ID)
		if err != nil {
			return Document{}, err
		}
		questions = append(questions, exportQuestion(sq, answers))
	}

	doc := Document{
		Quiz: Block{
			QuizBlock: quiz.QuizBlock{
				Name:               m.Name,
				DescriptionHTML:    quiz.StringPtr(m.Description),
				FinalScreenHTML:    quiz.StringPtr(m.FinalScreen),
				ReuseQuestionsFrom: quiz.StringPtr(m.ReuseQuestionsFrom),
				Settings:           x.Schema.Normalize(m.Settings),
			},
			SourceExamID: source,
		},
		Questions: questions,
	}
	if x.Posts != nil {
		if postID, err := x.Posts.FindLinked(ctx, quizID); err == nil && postID > 0 {
			if tags, err := x.Posts.Tags(ctx, postID); err == nil && !tags.IsEmpty() {
				doc.Quiz.Tags = &tags
			}
		}
	}

	switch {
	case len(questions) == 0:
		doc.Note = NoteEmpty
	case reused:
		doc.Note = NoteReused
	}
	return doc, nil
}

func exportQuestion(sq quiz.StoredQuestion, answers []quiz.StoredAnswer) quiz.Question {
	sort := sq.SortOrder
	q := quiz.Question{
		Title:                sq.Title,
		QuestionHTML:         sq.QuestionHTML,
		AnswerType:           sq.AnswerType,
		SortOrder:            &sort,
		ExplainAnswerHTML:    sq.ExplainAnswer,
		DontRandomizeAnswers: sq.DontRandomizeAnswers,
		TrueFalse:            sq.TrueFalse,
		Answers:              make([]quiz.Answer, 0, len(answers)),
		AnswersState:         quiz.FieldList,
	}
	for _, sa := range answers {
		asort := sa.SortOrder
		q.Answers = append(q.Answers, quiz.Answer{
			AnswerHTML: sa.AnswerHTML,
			Correct:    sa.Correct,
			Point:      sa.Point,
			SortOrder:  &asort,
		})
	}
	return q
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases name and collapses everything else into dashes.
func Slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "quiz"
	}
	return s
}

// Filename is the download name of an exported quiz.
func Filename(quizID int64, name string) string {
	return fmt.Sprintf("quiz-%d-%s.json", quizID, Slug(name))
}

// BuilderFilename is the download name of a builder document.
func BuilderFilename(name string) string {
	return fmt.Sprintf("quiz-%s-import.json", Slug(name))
}
