package exam

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/mindengage-ujian/internal/grading"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, "; "))
}

// ValidateExam checks an exam definition before it is stored.
func ValidateExam(e Exam) error {
	if err := validate.Struct(e); err != nil {
		return validationError(err)
	}
	seen := make(map[string]bool, len(e.Questions))
	for _, q := range e.Questions {
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %s", ErrValidation, q.ID)
		}
		seen[q.ID] = true
		if err := validateQuestion(q); err != nil {
			return err
		}
	}
	return nil
}

func validateQuestion(q Question) error {
	if q.Type.HasOptions() {
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %s: options required for %s", ErrValidation, q.ID, q.Type)
		}
		ids := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if ids[o.ID] {
				return fmt.Errorf("%w: question %s: duplicate option id %s", ErrValidation, q.ID, o.ID)
			}
			ids[o.ID] = true
		}
	}
	if q.CorrectAnswer.IsZero() {
		return fmt.Errorf("%w: question %s: correct_answer required", ErrValidation, q.ID)
	}
	// mcq keys may be a one-element list; input keys may be a list (first wins)
	if q.Type == TypeMultipleSelect && !q.CorrectAnswer.IsMultiple() {
		return fmt.Errorf("%w: question %s: correct_answer must be a list for multiple_select", ErrValidation, q.ID)
	}
	if q.Type == TypeMCQ {
		if l, ok := q.CorrectAnswer.List(); ok && len(l) != 1 {
			return fmt.Errorf("%w: question %s: mcq correct_answer must be one value", ErrValidation, q.ID)
		}
	}
	return nil
}

// CheckAnswerShape rejects a user answer whose shape does not match the
// question type: a string for mcq and input, a list for multiple_select.
func CheckAnswerShape(t QuestionType, v grading.Value) error {
	if v.IsZero() {
		return fmt.Errorf("%w: user_answer required", ErrValidation)
	}
	switch t {
	case TypeMultipleSelect:
		if !v.IsMultiple() {
			return fmt.Errorf("%w: user_answer must be a list for %s", ErrValidation, t)
		}
	case TypeMCQ, TypeInput:
		if v.IsMultiple() {
			return fmt.Errorf("%w: user_answer must be a string for %s", ErrValidation, t)
		}
	}
	return nil
}
