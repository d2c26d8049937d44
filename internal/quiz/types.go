package quiz

import "strings"

const (
	InputRadio    = "radio"
	InputCheckbox = "checkbox"
	InputTextarea = "textarea"
)

var inputSynonyms = map[string]string{
	"single":   InputRadio,
	"multi":    InputCheckbox,
	"multiple": InputCheckbox,
	"open":     InputTextarea,
	"text":     InputTextarea,
}

// NormalizeInputType maps historical answer-type synonyms to storage values.
// trueFalse reports the true/false convenience flag; mapped is false when
// raw was passed through untouched.
func NormalizeInputType(raw string) (answerType string, trueFalse bool, mapped bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	switch key {
	case "truefalse", "true_false", "tf":
		return InputRadio, true, true
	}
	if t, ok := inputSynonyms[key]; ok {
		return t, false, true
	}
	return raw, false, false
}
