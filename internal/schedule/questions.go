package schedule

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)
)

// ValidateAnswers checks every answer against its question and returns a map
// of question id to error message. An empty map means all answers are
// acceptable. Answers for unknown question ids are ignored.
func ValidateAnswers(questions []Question, answers map[string]any) map[string]string {
	failures := map[string]string{}
	for _, q := range questions {
		if err := ValidateAnswer(q, answers[q.ID]); err != nil {
			failures[q.ID] = err.Error()
		}
	}
	return failures
}

// ValidateAnswer checks one response against its question's type and
// required flag.
func ValidateAnswer(q Question, value any) error {
	switch q.Type {
	case QuestionMultiselect, QuestionCheckbox:
		return validateMultiAnswer(q, value)
	}

	text, _ := value.(string)
	text = strings.TrimSpace(text)
	if text == "" {
		if q.Required {
			return fmt.Errorf("an answer is required")
		}
		return nil
	}

	switch q.Type {
	case QuestionEmail:
		if !emailPattern.MatchString(text) {
			return fmt.Errorf("%q is not a valid email address", text)
		}
	case QuestionPhone:
		if !phonePattern.MatchString(text) {
			return fmt.Errorf("%q is not a valid phone number", text)
		}
	case QuestionSelect, QuestionRadio:
		if !containsOption(q.Options, text) {
			return fmt.Errorf("%q is not one of the offered options", text)
		}
	case QuestionText, QuestionTextarea:
		// Free text, nothing further to check.
	default:
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	return nil
}

func validateMultiAnswer(q Question, value any) error {
	var picked []string
	switch v := value.(type) {
	case nil:
	case []string:
		picked = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("answers must be strings")
			}
			picked = append(picked, s)
		}
	default:
		return fmt.Errorf("answer must be a list of options")
	}

	if len(picked) == 0 {
		if q.Required {
			return fmt.Errorf("at least one option must be selected")
		}
		return nil
	}
	for _, p := range picked {
		if !containsOption(q.Options, p) {
			return fmt.Errorf("%q is not one of the offered options", p)
		}
	}
	return nil
}

func containsOption(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}
