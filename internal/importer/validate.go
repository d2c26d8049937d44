package importer

import (
	"fmt"
	"strings"

	"github.com/iknowaviation/quizport/internal/quiz"
)

// Validate checks one canonical payload for the given resolved mode. Modes
// that rewrite questions get full validation; the others only require
// questions, when present, to be a list.
func Validate(p quiz.Payload, mode Mode) error {
	if p.Quiz == nil || strings.TrimSpace(p.Quiz.Name) == "" {
		return invalid("quiz.name", "Missing quiz.name.")
	}

	if !mode.TouchesQuestions() {
		if p.QuestionsState == quiz.FieldMalformed {
			return invalid("questions", "questions must be an array when present.")
		}
		return nil
	}

	if p.QuestionsState != quiz.FieldList {
		return invalid("questions", "Missing questions array.")
	}
	for i, q := range p.Questions {
		n := i + 1
		path := fmt.Sprintf("questions[%d]", i)
		if blank(q.QuestionHTML) {
			return invalid(path, "Question #%d missing question_html.", n)
		}
		if blank(q.AnswerType) {
			return invalid(path, "Question #%d missing answer_type.", n)
		}
		if q.AnswersState != quiz.FieldList || len(q.Answers) == 0 {
			return invalid(path+".answers", "Question #%d missing answers array.", n)
		}
		if blank(q.ExplainAnswerHTML) {
			return invalid(path, "Question #%d missing explain_answer_html (required).", n)
		}
		for j, a := range q.Answers {
			apath := fmt.Sprintf("%s.answers[%d]", path, j)
			if blank(a.AnswerHTML) {
				return invalid(apath, "Question #%d answer #%d missing answer_html.", n, j+1)
			}
			if !blank(a.ExplanationHTML) {
				return invalid(apath,
					"Question #%d answer #%d includes explanation_html. Use explain_answer_html at the question level only.", n, j+1)
			}
		}
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
