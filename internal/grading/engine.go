package grading

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type          string
	Points        int
	CorrectAnswer Value
}

// Result is the outcome of grading a single question response.
type Result struct {
	Correct      bool
	PointsEarned int // Points when Correct, 0 otherwise
	MaxPoints    int
}

// Strategy grades a single question type.
type Strategy interface {
	Correct(q Q, response Value) bool
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Q, response Value) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

// Grade never fails: a type without a strategy is graded as incorrect.
func (g *defaultGrader) Grade(q Q, response Value) Result {
	res := Result{MaxPoints: q.Points}
	s, ok := g.strategies[q.Type]
	if !ok || response.IsZero() {
		return res
	}
	if s.Correct(q, response) {
		res.Correct = true
		res.PointsEarned = q.Points
	}
	return res
}

// NewDefaultGrader installs built-in strategies for mcq, multiple_select and input.
func NewDefaultGrader() Grader {
	return &defaultGrader{strategies: map[string]Strategy{
		"mcq":             mcqStrategy{},
		"multiple_select": multipleSelectStrategy{},
		"input":           inputStrategy{},
	}}
}

// --- Strategies ---

type mcqStrategy struct{}

// A one-element answer key is unwrapped to its single string.
func (mcqStrategy) Correct(q Q, response Value) bool {
	resp, ok := response.Str()
	if !ok {
		return false
	}
	key, ok := q.CorrectAnswer.Str()
	if !ok {
		list, _ := q.CorrectAnswer.List()
		if len(list) != 1 {
			return false
		}
		key = list[0]
	}
	return resp == key
}

type multipleSelectStrategy struct{}

func (multipleSelectStrategy) Correct(q Q, response Value) bool {
	resp, ok := response.List()
	if !ok {
		return false
	}
	key, ok := q.CorrectAnswer.List()
	if !ok {
		return false
	}
	return sortedEqual(resp, key)
}

type inputStrategy struct{}

func (inputStrategy) Correct(q Q, response Value) bool {
	resp, ok := response.Str()
	if !ok {
		return false
	}
	key, ok := q.CorrectAnswer.Str()
	if !ok {
		if list, _ := q.CorrectAnswer.List(); len(list) > 0 {
			key = list[0]
		}
	}
	return normalize(resp) == normalize(key)
}
