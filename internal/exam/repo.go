package exam

import (
	"context"

	"github.com/mind-engage/mindengage-ujian/internal/grading"
)

type AttemptListOpts struct {
	UserID string
	ExamID string // optional
	Status Status // optional: in_progress|completed|abandoned
	Limit  int
	Offset int
}

// ScoreFunc aggregates a locked, just-completed attempt. Stores call it inside
// the completing transaction.
type ScoreFunc func(a Attempt, answers []Answer) grading.Summary

type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error) // full definition, answer keys included
	// ListActiveExams pages active exams, leaving out those the user finished
	// when resubmission is off and nothing is in progress.
	ListActiveExams(ctx context.Context, userID string, limit, offset int) ([]ExamSummary, error)

	// CreateAttempt persists a new in-progress attempt with its snapshot.
	// Returns ErrActiveAttemptExists if the pair already has one.
	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ActiveAttempt(ctx context.Context, userID, examID string) (Attempt, error)
	HasCompleted(ctx context.Context, userID, examID string) (bool, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, int, error)

	// UpsertAnswer replaces any earlier answer to the same question.
	// Returns ErrInvalidState unless the attempt is in progress.
	UpsertAnswer(ctx context.Context, ans Answer) error
	ListAnswers(ctx context.Context, attemptID string) ([]Answer, error)

	// CompleteAttempt and AbandonAttempt are compare-and-set on status: only
	// an in-progress attempt transitions, otherwise ErrInvalidState.
	CompleteAttempt(ctx context.Context, attemptID string, at int64, score ScoreFunc) (Attempt, error)
	AbandonAttempt(ctx context.Context, attemptID string, at int64) (Attempt, error)
}
