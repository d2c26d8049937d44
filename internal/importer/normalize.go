package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iknowaviation/quizport/internal/quiz"
)

// SupportedVersion is the only accepted value of a versioned document's "version".
const SupportedVersion = "1.0"

// DefaultsFunc loads the whitelist defaults of a stored quiz.
type DefaultsFunc func(ctx context.Context, quizID int64) (quiz.Defaults, error)

// Normalizer turns an uploaded document into canonical per-quiz payloads.
type Normalizer struct {
	Defaults   DefaultsFunc
	BaseQuizID int64
}

// Normalized is the outcome of a successful normalisation.
type Normalized struct {
	Payloads  []quiz.Payload
	Versioned bool
	Log       []string
}

// Decode parses raw JSON into a generic document keeping numbers exact.
func Decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalid("", "Invalid JSON: %v", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("", "Invalid JSON: expected an object at the top level.")
	}
	return doc, nil
}

func (n *Normalizer) Normalize(ctx context.Context, raw []byte) (Normalized, error) {
	doc, err := Decode(raw)
	if err != nil {
		return Normalized{}, err
	}
	doc = unwrap(doc)

	if isVersioned(doc) {
		return n.normalizeVersioned(ctx, doc)
	}
	return Normalized{Payloads: []quiz.Payload{PayloadFromMap(doc)}}, nil
}

// unwrap peels data/payload wrappers and maps capitalised keys.
func unwrap(doc map[string]any) map[string]any {
	for {
		if hasAny(doc, "quiz", "Quiz", "quizzes", "version") {
			break
		}
		inner, ok := doc["data"].(map[string]any)
		if !ok {
			inner, ok = doc["payload"].(map[string]any)
		}
		if !ok {
			break
		}
		doc = inner
	}
	for _, k := range []string{"quiz", "questions"} {
		upper := strings.ToUpper(k[:1]) + k[1:]
		if _, ok := doc[k]; !ok {
			if v, ok := doc[upper]; ok {
				doc[k] = v
			}
		}
	}
	return doc
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// isVersioned reports whether doc is a versioned batch: a non-null version
// next to a quizzes array. Anything else is read as a legacy document.
func isVersioned(doc map[string]any) bool {
	_, list := doc["quizzes"].([]any)
	return list && doc["version"] != nil
}

func (n *Normalizer) normalizeVersioned(ctx context.Context, doc map[string]any) (Normalized, error) {
	version := strings.TrimSpace(quiz.ScalarString(doc["version"]))
	if version != SupportedVersion {
		return Normalized{}, invalid("version", "Unsupported schema version: %s (expected %s)", version, SupportedVersion)
	}
	quizzes, ok := doc["quizzes"].([]any)
	if !ok {
		return Normalized{}, invalid("quizzes", "Missing quizzes array.")
	}

	out := Normalized{Versioned: true}
	for i, rq := range quizzes {
		path := fmt.Sprintf("quizzes[%d]", i)
		qm, ok := rq.(map[string]any)
		if !ok {
			return Normalized{}, invalid(path, "Expected an object at %s", path)
		}
		p, base, err := n.convertQuiz(ctx, path, qm)
		if err != nil {
			return Normalized{}, err
		}
		out.Payloads = append(out.Payloads, p)
		out.Log = append(out.Log, fmt.Sprintf("Converted versioned quiz #%d → internal payload (base_exam_id=%d)", i+1, base))
	}
	return out, nil
}

func (n *Normalizer) convertQuiz(ctx context.Context, path string, qm map[string]any) (quiz.Payload, int64, error) {
	title := strings.TrimSpace(quiz.ScalarString(qm["quiz_title"]))
	if title == "" {
		return quiz.Payload{}, 0, invalid(path, "Missing quiz_title at %s", path)
	}
	base := intOf(qm["base_exam_id"])
	if base <= 0 {
		base = n.BaseQuizID
	}

	var defs quiz.Defaults
	if n.Defaults != nil {
		d, err := n.Defaults(ctx, base)
		if err != nil {
			return quiz.Payload{}, 0, fmt.Errorf("load defaults from quiz %d: %w", base, err)
		}
		defs = d
	}
	settings := defs.Settings.Clone()
	if over, ok := qm["settings_overrides"].(map[string]any); ok {
		for k, v := range over {
			settings[k] = v
		}
	}
	settings[quiz.TakeAgainKey] = 1

	desc := quiz.ScalarString(qm["description_html"])
	if strings.TrimSpace(desc) == "" {
		desc = defs.DescriptionHTML
	}
	final := quiz.ScalarString(qm["final_screen_html"])
	if strings.TrimSpace(final) == "" {
		final = defs.FinalScreenHTML
	}

	rawQs, ok := qm["questions"].([]any)
	if !ok || len(rawQs) == 0 {
		return quiz.Payload{}, 0, invalid(path+".questions", "Missing questions array at %s", path)
	}
	questions := make([]quiz.Question, 0, len(rawQs))
	for j, rq := range rawQs {
		q, err := convertQuestion(fmt.Sprintf("%s.questions[%d]", path, j), rq)
		if err != nil {
			return quiz.Payload{}, 0, err
		}
		questions = append(questions, q)
	}

	p := quiz.Payload{
		Quiz: &quiz.QuizBlock{
			Name:            title,
			DescriptionHTML: quiz.StringPtr(desc),
			FinalScreenHTML: quiz.StringPtr(final),
			Settings:        settings,
		},
		Questions:      questions,
		QuestionsState: quiz.FieldList,
	}
	tags := &quiz.Tags{
		Topics:     stringList(qm["tags"]),
		Difficulty: strings.TrimSpace(quiz.ScalarString(qm["level"])),
	}
	if g := strings.TrimSpace(quiz.ScalarString(qm["group"])); g != "" {
		tags.Audience = []string{g}
	}
	if !tags.IsEmpty() {
		p.Tags = tags
	}
	return p, base, nil
}

func convertQuestion(path string, rq any) (quiz.Question, error) {
	qm, ok := rq.(map[string]any)
	if !ok {
		return quiz.Question{}, invalid(path, "Expected an object at %s", path)
	}
	text := quiz.ScalarString(qm["q"])
	if blank(text) {
		return quiz.Question{}, invalid(path, "Missing q at %s", path)
	}
	expl := quiz.ScalarString(qm["explanation"])
	if blank(expl) {
		return quiz.Question{}, invalid(path, "Missing explanation at %s", path)
	}
	choices, ok := qm["choices"].([]any)
	if !ok || len(choices) == 0 {
		return quiz.Question{}, invalid(path+".choices", "Missing choices array at %s", path)
	}

	answerType := quiz.InputCheckbox
	if strings.EqualFold(strings.TrimSpace(quiz.ScalarString(qm["type"])), "single") {
		answerType = quiz.InputRadio
	}
	q := quiz.Question{
		QuestionHTML:      text,
		AnswerType:        answerType,
		ExplainAnswerHTML: expl,
		AnswersState:      quiz.FieldList,
		Answers:           make([]quiz.Answer, 0, len(choices)),
	}
	for k, rc := range choices {
		cpath := fmt.Sprintf("%s.choices[%d]", path, k)
		cm, ok := rc.(map[string]any)
		if !ok {
			return quiz.Question{}, invalid(cpath, "Expected an object at %s", cpath)
		}
		a := quiz.ScalarString(cm["a"])
		if blank(a) {
			return quiz.Question{}, invalid(cpath, "Missing a at %s", cpath)
		}
		q.Answers = append(q.Answers, quiz.Answer{AnswerHTML: a, Correct: truthy(cm["correct"])})
	}
	return q, nil
}

// PayloadFromMap reads a legacy-shaped document into a canonical payload,
// recording presence of the questions field for the validator.
func PayloadFromMap(doc map[string]any) quiz.Payload {
	var p quiz.Payload
	if qm, ok := doc["quiz"].(map[string]any); ok {
		p.Quiz = quizBlockFromMap(qm)
	}
	p.Questions, p.QuestionsState = ParseQuestions(doc["questions"], hasAny(doc, "questions"))
	if tm, ok := doc["tags"].(map[string]any); ok {
		p.Tags = tagsFromMap(tm)
	}
	return p
}

func quizBlockFromMap(qm map[string]any) *quiz.QuizBlock {
	b := &quiz.QuizBlock{Name: strings.TrimSpace(quiz.ScalarString(qm["name"]))}
	if v, ok := qm["description_html"]; ok {
		b.DescriptionHTML = quiz.StringPtr(quiz.ScalarString(v))
	}
	if v, ok := qm["final_screen_html"]; ok {
		b.FinalScreenHTML = quiz.StringPtr(quiz.ScalarString(v))
	}
	if v, ok := qm["reuse_questions_from"]; ok {
		b.ReuseQuestionsFrom = quiz.StringPtr(quiz.ScalarString(v))
	}
	if sm, ok := qm["settings"].(map[string]any); ok {
		b.Settings = quiz.Settings(sm)
	}
	if tm, ok := qm["tags"].(map[string]any); ok {
		b.Tags = tagsFromMap(tm)
	}
	return b
}

// ParseQuestions converts a raw questions value. present says whether the
// key existed at all.
func ParseQuestions(v any, present bool) ([]quiz.Question, quiz.FieldState) {
	if !present || v == nil {
		return nil, quiz.FieldAbsent
	}
	list, ok := v.([]any)
	if !ok {
		return nil, quiz.FieldMalformed
	}
	out := make([]quiz.Question, 0, len(list))
	for _, rq := range list {
		qm, _ := rq.(map[string]any)
		out = append(out, questionFromMap(qm))
	}
	return out, quiz.FieldList
}

func questionFromMap(qm map[string]any) quiz.Question {
	q := quiz.Question{
		Title:                quiz.ScalarString(qm["title"]),
		QuestionHTML:         quiz.ScalarString(qm["question_html"]),
		AnswerType:           strings.TrimSpace(quiz.ScalarString(qm["answer_type"])),
		SortOrder:            optionalInt(qm["sort_order"]),
		ExplainAnswerHTML:    quiz.ScalarString(qm["explain_answer_html"]),
		DontRandomizeAnswers: int(quiz.BoolInt(qm["dont_randomize_answers"])),
		TrueFalse:            int(quiz.BoolInt(qm["truefalse"])),
	}
	raw, present := qm["answers"]
	if !present || raw == nil {
		q.AnswersState = quiz.FieldAbsent
		return q
	}
	list, ok := raw.([]any)
	if !ok {
		q.AnswersState = quiz.FieldMalformed
		return q
	}
	q.AnswersState = quiz.FieldList
	q.Answers = make([]quiz.Answer, 0, len(list))
	for _, ra := range list {
		am, _ := ra.(map[string]any)
		q.Answers = append(q.Answers, answerFromMap(am))
	}
	return q
}

// truthy is the loose correctness flag of versioned choices: any value but
// null, false, 0, "", "0" and an empty list or object counts as correct.
func truthy(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		if x == 0 {
			return 0
		}
	case json.Number:
		if f, err := x.Float64(); err == nil && f == 0 {
			return 0
		}
	case string:
		if x == "" || x == "0" {
			return 0
		}
	case []any:
		if len(x) == 0 {
			return 0
		}
	case map[string]any:
		if len(x) == 0 {
			return 0
		}
	}
	return 1
}

// answerFromMap reads a legacy answer. is_correct wins over correct when
// both are set.
func answerFromMap(am map[string]any) quiz.Answer {
	correct := am["correct"]
	if v, ok := am["is_correct"]; ok && v != nil {
		correct = v
	}
	return quiz.Answer{
		AnswerHTML:      quiz.ScalarString(am["answer_html"]),
		Correct:         int(quiz.BoolInt(correct)),
		Point:           floatOf(am["point"]),
		SortOrder:       optionalInt(am["sort_order"]),
		ExplanationHTML: quiz.ScalarString(am["explanation_html"]),
	}
}

func tagsFromMap(tm map[string]any) *quiz.Tags {
	return &quiz.Tags{
		Topics:     stringList(tm["topics"]),
		Difficulty: strings.TrimSpace(quiz.ScalarString(tm["difficulty"])),
		Audience:   stringList(tm["audience"]),
	}
}

// stringList accepts a JSON array of scalars or a comma separated string.
func stringList(v any) []string {
	var parts []string
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			parts = append(parts, quiz.ScalarString(e))
		}
	case string:
		parts = strings.Split(x, ",")
	default:
		return nil
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func intOf(v any) int64 {
	s := strings.TrimSpace(quiz.ScalarString(v))
	if s == "" {
		return 0
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func optionalInt(v any) *int {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(quiz.ScalarString(v))
	if s == "" {
		return nil
	}
	i := int(intOf(v))
	return &i
}

func floatOf(v any) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(quiz.ScalarString(v)), 64)
	if err != nil {
		return 0
	}
	return f
}
