package quiz

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("quiz not found")

// Store is the persistence surface the import engine and exporter use.
type Store interface {
	FindIDByName(ctx context.Context, name string) (int64, error)
	InsertMaster(ctx context.Context, q QuizBlock) (int64, error)
	UpdateMaster(ctx context.Context, id int64, q QuizBlock) (bool, error)
	DeleteQuestions(ctx context.Context, quizID int64) (int, error)
	InsertQuestion(ctx context.Context, quizID int64, q Question, sortOrder int) (int64, error)
	InsertAnswer(ctx context.Context, questionID int64, a Answer, sortOrder int) (int64, error)

	GetMaster(ctx context.Context, id int64) (Master, error)
	ListQuestions(ctx context.Context, quizID int64) ([]StoredQuestion, error)
	ListAnswers(ctx context.Context, questionID int64) ([]StoredAnswer, error)
	ListMasters(ctx context.Context, limit int) ([]MasterSummary, error)
	MasterDefaults(ctx context.Context, id int64) (Defaults, error)
}
