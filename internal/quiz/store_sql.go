package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iknowaviation/quizport/internal/db"
)

type SQLStore struct {
	q      db.Querier
	schema *Schema
	now    func() time.Time
}

func NewSQLStore(q db.Querier, schema *Schema) *SQLStore {
	if schema == nil {
		schema = DefaultSchema
	}
	return &SQLStore{q: q, schema: schema, now: time.Now}
}

// WithQuerier returns a store bound to q, typically an open *sql.Tx.
func (s *SQLStore) WithQuerier(q db.Querier) *SQLStore {
	cp := *s
	cp.q = q
	return &cp
}

func (s *SQLStore) Schema() *Schema { return s.schema }

func (s *SQLStore) FindIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx,
		`SELECT id FROM quiz_master WHERE name=$1 ORDER BY id ASC LIMIT 1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find quiz by name: %w", err)
	}
	return id, nil
}

// reusePointer resolves the reuse pointer from the quiz root, then settings.
func reusePointer(q QuizBlock) (string, bool) {
	if q.ReuseQuestionsFrom != nil {
		return strings.TrimSpace(*q.ReuseQuestionsFrom), true
	}
	if v, ok := q.Settings[ReuseKey]; ok {
		return strings.TrimSpace(ScalarString(v)), true
	}
	return "", false
}

func (s *SQLStore) InsertMaster(ctx context.Context, q QuizBlock) (int64, error) {
	cols := []string{"name", "description", "final_screen", "added_on"}
	args := []any{strings.TrimSpace(q.Name), deref(q.DescriptionHTML), deref(q.FinalScreenHTML), s.now().Unix()}
	if reuse, ok := reusePointer(q); ok {
		cols = append(cols, "reuse_questions_from")
		args = append(args, reuse)
	}
	for _, cv := range s.schema.Row(q.Settings) {
		cols = append(cols, cv.Column)
		args = append(args, cv.Value)
	}
	query := fmt.Sprintf(`INSERT INTO quiz_master (%s) VALUES (%s) RETURNING id`,
		strings.Join(cols, ", "), db.Placeholders(1, len(args)))
	var id int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert quiz master: %w", err)
	}
	return id, nil
}

// UpdateMaster writes only the columns present in q. It reports false, with
// no error, when nothing qualified for the update set.
func (s *SQLStore) UpdateMaster(ctx context.Context, id int64, q QuizBlock) (bool, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		add("name", name)
	}
	if q.DescriptionHTML != nil {
		add("description", *q.DescriptionHTML)
	}
	if q.FinalScreenHTML != nil {
		add("final_screen", *q.FinalScreenHTML)
	}
	if reuse, ok := reusePointer(q); ok {
		add("reuse_questions_from", reuse)
	}
	for _, cv := range s.schema.Row(q.Settings) {
		add(cv.Column, cv.Value)
	}
	if len(sets) == 0 {
		return false, nil
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE quiz_master SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("update quiz master %d: %w", id, err)
	}
	return true, nil
}

// DeleteQuestions removes every answer of the quiz's questions, then the
// questions themselves, and returns how many questions were removed.
func (s *SQLStore) DeleteQuestions(ctx context.Context, quizID int64) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quiz_question WHERE exam_id=$1`, quizID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM quiz_answer WHERE question_id IN (SELECT id FROM quiz_question WHERE exam_id=$1)`, quizID); err != nil {
		return 0, fmt.Errorf("delete answers: %w", err)
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM quiz_question WHERE exam_id=$1`, quizID); err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}
	return n, nil
}

func (s *SQLStore) InsertQuestion(ctx context.Context, quizID int64, q Question, sortOrder int) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `INSERT INTO quiz_question
		(exam_id, title, question, answer_type, sort_order, explain_answer, dont_randomize_answers, truefalse)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		quizID, strings.TrimSpace(q.Title), q.QuestionHTML, q.AnswerType, sortOrder,
		q.ExplainAnswerHTML, q.DontRandomizeAnswers, q.TrueFalse).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}

// InsertAnswer always stores a NULL explanation; explanations live on the question.
func (s *SQLStore) InsertAnswer(ctx context.Context, questionID int64, a Answer, sortOrder int) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `INSERT INTO quiz_answer
		(question_id, answer, correct, point, sort_order, explanation)
		VALUES ($1,$2,$3,$4,$5,NULL) RETURNING id`,
		questionID, a.AnswerHTML, a.Correct, a.Point, sortOrder).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert answer: %w", err)
	}
	return id, nil
}

func (s *SQLStore) GetMaster(ctx context.Context, id int64) (Master, error) {
	fields := s.schema.Fields()
	cols := make([]string, 0, len(fields)+6)
	cols = append(cols, "id", "name", "description", "final_screen", "reuse_questions_from", "added_on")
	for _, f := range fields {
		cols = append(cols, f.Column)
	}

	var m Master
	ints := make([]sql.NullInt64, len(fields))
	strs := make([]sql.NullString, len(fields))
	dest := []any{&m.ID, &m.Name, &m.Description, &m.FinalScreen, &m.ReuseQuestionsFrom, &m.AddedOn}
	for i, f := range fields {
		if f.Bool {
			dest = append(dest, &ints[i])
		} else {
			dest = append(dest, &strs[i])
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM quiz_master WHERE id=$1`, strings.Join(cols, ", "))
	if err := s.q.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Master{}, ErrNotFound
		}
		return Master{}, fmt.Errorf("get quiz master %d: %w", id, err)
	}

	m.Settings = make(Settings, len(fields))
	for i, f := range fields {
		if f.Bool {
			m.Settings[f.Key] = ints[i].Int64
		} else {
			m.Settings[f.Key] = strs[i].String
		}
	}
	return m, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, quizID int64) ([]StoredQuestion, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, exam_id, title, question, answer_type, sort_order,
		explain_answer, dont_randomize_answers, truefalse
		FROM quiz_question WHERE exam_id=$1 ORDER BY sort_order ASC, id ASC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	var out []StoredQuestion
	for rows.Next() {
		var q StoredQuestion
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Title, &q.QuestionHTML, &q.AnswerType, &q.SortOrder,
			&q.ExplainAnswer, &q.DontRandomizeAnswers, &q.TrueFalse); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAnswers(ctx context.Context, questionID int64) ([]StoredAnswer, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, question_id, answer, correct, point, sort_order, explanation
		FROM quiz_answer WHERE question_id=$1 ORDER BY sort_order ASC, id ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	var out []StoredAnswer
	for rows.Next() {
		var a StoredAnswer
		var expl sql.NullString
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.AnswerHTML, &a.Correct, &a.Point, &a.SortOrder, &expl); err != nil {
			return nil, err
		}
		if expl.Valid {
			a.Explanation = &expl.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListMasters(ctx context.Context, limit int) ([]MasterSummary, error) {
	if limit <= 0 {
		limit = 300
	}
	rows, err := s.q.QueryContext(ctx, `SELECT id, name FROM quiz_master ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()
	var out []MasterSummary
	for rows.Next() {
		var m MasterSummary
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MasterDefaults returns empty defaults, not an error, for a missing quiz.
func (s *SQLStore) MasterDefaults(ctx context.Context, id int64) (Defaults, error) {
	if id <= 0 {
		return Defaults{Settings: Settings{}}, nil
	}
	m, err := s.GetMaster(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Defaults{Settings: Settings{}}, nil
	}
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		Settings:        s.schema.Normalize(m.Settings),
		DescriptionHTML: m.Description,
		FinalScreenHTML: m.FinalScreen,
	}, nil
}

func (s *SQLStore) CountQuestions(ctx context.Context, quizID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_question WHERE exam_id=$1`, quizID).Scan(&n)
	return n, err
}

func (s *SQLStore) CountAnswers(ctx context.Context, quizID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_answer a
		JOIN quiz_question q ON q.id = a.question_id WHERE q.exam_id=$1`, quizID).Scan(&n)
	return n, err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
