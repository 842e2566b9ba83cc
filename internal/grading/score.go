package grading

import "math"

// Item is one question of an attempt as seen by the aggregator.
// Unanswered questions have Answered=false.
type Item struct {
	Points   int
	Answered bool
	Correct  bool
}

// Summary is the aggregate of an attempt. Score is a percentage kept at full
// precision; use RoundScore for display.
type Summary struct {
	Score             float64 `json:"score"`
	TotalPoints       int     `json:"total_points"`
	TotalPointsEarned int     `json:"total_points_earned"`
	TotalQuestions    int     `json:"total_questions"`
	CorrectAnswers    int     `json:"correct_answers"`
	IncorrectAnswers  int     `json:"incorrect_answers"`
}

// Aggregate totals an attempt. Unanswered questions count as incorrect and
// still contribute their points to the denominator.
func Aggregate(items []Item) Summary {
	var s Summary
	s.TotalQuestions = len(items)
	for _, it := range items {
		s.TotalPoints += it.Points
		if it.Answered && it.Correct {
			s.TotalPointsEarned += it.Points
			s.CorrectAnswers++
			continue
		}
		s.IncorrectAnswers++
	}
	if s.TotalPoints > 0 {
		s.Score = float64(s.TotalPointsEarned) / float64(s.TotalPoints) * 100
	}
	return s
}

// RoundScore rounds a percentage to one decimal place.
func RoundScore(score float64) float64 {
	return math.Round(score*10) / 10
}
