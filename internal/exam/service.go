package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-ujian/internal/grading"
)

// EventSink receives terminal attempt transitions after they are persisted.
type EventSink interface {
	AttemptFinished(ctx context.Context, a Attempt) error
}

// Service is the attempt lifecycle manager. It owns the attempt state machine
// and calls the selector, grader and aggregator.
type Service struct {
	store  Store
	grader grading.Grader
	events EventSink
	now    func() time.Time
	newID  func() string
}

type ServiceOption func(*Service)

func WithEvents(e EventSink) ServiceOption          { return func(s *Service) { s.events = e } }
func WithClock(now func() time.Time) ServiceOption  { return func(s *Service) { s.now = now } }
func WithIDGenerator(f func() string) ServiceOption { return func(s *Service) { s.newID = f } }

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		grader: grading.NewDefaultGrader(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ---- views ----

// QuestionView is a question as shown to the test-taker: never the answer key.
type QuestionView struct {
	ID         string       `json:"id"`
	Text       string       `json:"question_text"`
	Type       QuestionType `json:"question_type"`
	Options    []Option     `json:"options,omitempty"`
	Points     int          `json:"points"`
	OrderIndex int          `json:"order_index"`
}

type ExamInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PracticeMode bool   `json:"practice_mode"`
}

type StartView struct {
	AttemptID  string         `json:"attempt_id"`
	Exam       ExamInfo       `json:"ujian"`
	Questions  []QuestionView `json:"questions"`
	IsResuming bool           `json:"is_resuming"`
}

// AnsweredView is a stored answer returned on resume. Correctness is only
// included in practice mode.
type AnsweredView struct {
	QuestionID    string         `json:"question_id"`
	UserAnswer    grading.Value  `json:"user_answer"`
	AnsweredAt    int64          `json:"answered_at"`
	IsCorrect     *bool          `json:"is_correct,omitempty"`
	CorrectAnswer *grading.Value `json:"correct_answer,omitempty"`
}

type ResumeView struct {
	AttemptID     string         `json:"attempt_id"`
	Status        Status         `json:"status"`
	Exam          ExamInfo       `json:"ujian"`
	Questions     []QuestionView `json:"questions"`
	AnsweredSoFar []AnsweredView `json:"answered_so_far"`
}

type SubmitInput struct {
	QuestionID string        `json:"question_id" validate:"required"`
	UserAnswer grading.Value `json:"user_answer"`
}

// AnswerFeedback optional fields are set in practice mode only.
type AnswerFeedback struct {
	Recorded      bool           `json:"recorded"`
	IsCorrect     *bool          `json:"is_correct,omitempty"`
	CorrectAnswer *grading.Value `json:"correct_answer,omitempty"`
	PointsEarned  *int           `json:"points_earned,omitempty"`
}

type ScoreSummary struct {
	TotalQuestions    int `json:"total_questions"`
	CorrectAnswers    int `json:"correct_answers"`
	IncorrectAnswers  int `json:"incorrect_answers"`
	TotalPointsEarned int `json:"total_points_earned"`
}

// Completion reports a score rounded to one decimal.
type Completion struct {
	AttemptID   string       `json:"attempt_id"`
	Score       float64      `json:"score"`
	TotalPoints int          `json:"total_points"`
	Summary     ScoreSummary `json:"summary"`
}

func completionFrom(attemptID string, s grading.Summary) Completion {
	return Completion{
		AttemptID:   attemptID,
		Score:       grading.RoundScore(s.Score),
		TotalPoints: s.TotalPoints,
		Summary: ScoreSummary{
			TotalQuestions:    s.TotalQuestions,
			CorrectAnswers:    s.CorrectAnswers,
			IncorrectAnswers:  s.IncorrectAnswers,
			TotalPointsEarned: s.TotalPointsEarned,
		},
	}
}

func examInfo(a Attempt) ExamInfo {
	return ExamInfo{ID: a.ExamID, Title: a.Snapshot.Title, PracticeMode: a.Snapshot.PracticeMode}
}

func questionViews(snap Snapshot) []QuestionView {
	out := make([]QuestionView, 0, len(snap.Questions))
	for _, q := range snap.Questions {
		out = append(out, QuestionView{
			ID:         q.ID,
			Text:       q.Text,
			Type:       q.Type,
			Options:    append([]Option(nil), q.Options...),
			Points:     q.Points,
			OrderIndex: q.OrderIndex,
		})
	}
	return out
}

// ---- lifecycle ----

// Start creates an attempt, or returns the user's in-progress attempt for the
// exam unchanged.
func (s *Service) Start(ctx context.Context, userID, examID string) (StartView, error) {
	if userID == "" {
		return StartView{}, fmt.Errorf("%w: user id required", ErrValidation)
	}
	ex, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return StartView{}, err
	}
	if !ex.IsActive {
		return StartView{}, fmt.Errorf("%w: exam %s is not active", ErrInvalidState, examID)
	}

	if a, err := s.store.ActiveAttempt(ctx, userID, examID); err == nil {
		return s.startView(a, true), nil
	} else if !errors.Is(err, ErrNotFound) {
		return StartView{}, err
	}

	if !ex.AllowResubmit {
		done, err := s.store.HasCompleted(ctx, userID, examID)
		if err != nil {
			return StartView{}, err
		}
		if done {
			return StartView{}, fmt.Errorf("%w: exam %s already completed and resubmit is not allowed", ErrInvalidState, examID)
		}
	}

	id := s.newID()
	seed := SeedFromID(id)
	sel, err := Select(ex, seed)
	if err != nil {
		return StartView{}, err
	}
	now := s.now().Unix()
	a, err := s.store.CreateAttempt(ctx, Attempt{
		ID:             id,
		ExamID:         examID,
		UserID:         userID,
		Status:         StatusInProgress,
		StartedAt:      now,
		LastActivityAt: now,
		Snapshot:       NewSnapshot(ex, seed, sel),
	})
	if errors.Is(err, ErrActiveAttemptExists) {
		// lost the start race: hand back the winner's attempt
		winner, err := s.store.ActiveAttempt(ctx, userID, examID)
		if err != nil {
			return StartView{}, err
		}
		return s.startView(winner, true), nil
	}
	if err != nil {
		return StartView{}, err
	}
	log.Printf("ujian: attempt %s started (user=%s exam=%s questions=%d)", a.ID, userID, examID, len(a.Snapshot.Questions))
	return s.startView(a, false), nil
}

func (s *Service) startView(a Attempt, resuming bool) StartView {
	return StartView{
		AttemptID:  a.ID,
		Exam:       examInfo(a),
		Questions:  questionViews(a.Snapshot),
		IsResuming: resuming,
	}
}

// ownedAttempt loads an attempt and checks ownership. An empty requesterID is
// a trusted system caller and skips the check.
func (s *Service) ownedAttempt(ctx context.Context, attemptID, requesterID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if requesterID != "" && a.UserID != requesterID {
		return Attempt{}, fmt.Errorf("%w: attempt %s belongs to another user", ErrForbidden, attemptID)
	}
	return a, nil
}

// Resume rebuilds the question view from the stored snapshot plus any answers
// already submitted.
func (s *Service) Resume(ctx context.Context, attemptID, requesterID string) (ResumeView, error) {
	a, err := s.ownedAttempt(ctx, attemptID, requesterID)
	if err != nil {
		return ResumeView{}, err
	}
	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return ResumeView{}, err
	}
	view := ResumeView{
		AttemptID:     a.ID,
		Status:        a.Status,
		Exam:          examInfo(a),
		Questions:     questionViews(a.Snapshot),
		AnsweredSoFar: make([]AnsweredView, 0, len(answers)),
	}
	for _, ans := range answers {
		av := AnsweredView{QuestionID: ans.QuestionID, UserAnswer: ans.UserAnswer, AnsweredAt: ans.AnsweredAt}
		if a.Snapshot.PracticeMode {
			if q, ok := a.Snapshot.Question(ans.QuestionID); ok {
				ca := q.CorrectAnswer
				av.IsCorrect = ans.IsCorrect
				av.CorrectAnswer = &ca
			}
		}
		view.AnsweredSoFar = append(view.AnsweredSoFar, av)
	}
	return view, nil
}

// SubmitAnswer grades and upserts one answer. Correctness is always stored;
// it is only returned in practice mode.
func (s *Service) SubmitAnswer(ctx context.Context, attemptID, requesterID string, in SubmitInput) (AnswerFeedback, error) {
	if err := validate.Struct(in); err != nil {
		return AnswerFeedback{}, validationError(err)
	}
	if in.UserAnswer.IsZero() {
		return AnswerFeedback{}, fmt.Errorf("%w: user_answer required", ErrValidation)
	}
	a, err := s.ownedAttempt(ctx, attemptID, requesterID)
	if err != nil {
		return AnswerFeedback{}, err
	}
	if a.Status != StatusInProgress {
		return AnswerFeedback{}, fmt.Errorf("%w: attempt not active (%s)", ErrInvalidState, a.Status)
	}
	q, ok := a.Snapshot.Question(in.QuestionID)
	if !ok {
		return AnswerFeedback{}, fmt.Errorf("%w: question %s is not part of attempt %s", ErrNotFound, in.QuestionID, attemptID)
	}
	if err := CheckAnswerShape(q.Type, in.UserAnswer); err != nil {
		return AnswerFeedback{}, err
	}

	res := s.grader.Grade(grading.Q{Type: string(q.Type), Points: q.Points, CorrectAnswer: q.CorrectAnswer}, in.UserAnswer)
	correct := res.Correct
	err = s.store.UpsertAnswer(ctx, Answer{
		AttemptID:    attemptID,
		QuestionID:   q.ID,
		UserAnswer:   in.UserAnswer,
		IsCorrect:    &correct,
		PointsEarned: res.PointsEarned,
		AnsweredAt:   s.now().Unix(),
	})
	if err != nil {
		return AnswerFeedback{}, err
	}

	fb := AnswerFeedback{Recorded: true}
	if a.Snapshot.PracticeMode {
		ca := q.CorrectAnswer
		pts := res.PointsEarned
		fb.IsCorrect = &correct
		fb.CorrectAnswer = &ca
		fb.PointsEarned = &pts
	}
	return fb, nil
}

// aggregate scores an attempt from its snapshot and stored answers.
func aggregate(a Attempt, answers []Answer) grading.Summary {
	byQ := make(map[string]Answer, len(answers))
	for _, ans := range answers {
		byQ[ans.QuestionID] = ans
	}
	items := make([]grading.Item, 0, len(a.Snapshot.Questions))
	for _, q := range a.Snapshot.Questions {
		it := grading.Item{Points: q.Points}
		if ans, ok := byQ[q.ID]; ok {
			it.Answered = true
			it.Correct = ans.IsCorrect != nil && *ans.IsCorrect
		}
		items = append(items, it)
	}
	return grading.Aggregate(items)
}

// Complete finalizes an in-progress attempt and persists its score. A second
// completion of the same attempt fails with ErrInvalidState.
func (s *Service) Complete(ctx context.Context, attemptID, requesterID string) (Completion, error) {
	a, err := s.ownedAttempt(ctx, attemptID, requesterID)
	if err != nil {
		return Completion{}, err
	}
	if a.Status != StatusInProgress {
		return Completion{}, fmt.Errorf("%w: attempt %s is %s", ErrInvalidState, attemptID, a.Status)
	}
	done, err := s.store.CompleteAttempt(ctx, attemptID, s.now().Unix(), aggregate)
	if err != nil {
		return Completion{}, err
	}
	if done.Result == nil {
		return Completion{}, fmt.Errorf("complete %s: store returned no result", attemptID)
	}
	log.Printf("ujian: attempt %s completed (score=%.1f points=%d/%d)",
		attemptID, done.Result.Score, done.Result.TotalPointsEarned, done.Result.TotalPoints)
	s.publish(ctx, done)
	return completionFrom(attemptID, *done.Result), nil
}

// Abandon terminates an in-progress attempt without scoring.
func (s *Service) Abandon(ctx context.Context, attemptID, requesterID string) (Attempt, error) {
	a, err := s.ownedAttempt(ctx, attemptID, requesterID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status != StatusInProgress {
		return Attempt{}, fmt.Errorf("%w: attempt %s is %s", ErrInvalidState, attemptID, a.Status)
	}
	done, err := s.store.AbandonAttempt(ctx, attemptID, s.now().Unix())
	if err != nil {
		return Attempt{}, err
	}
	log.Printf("ujian: attempt %s abandoned", attemptID)
	s.publish(ctx, done)
	return done, nil
}

func (s *Service) publish(ctx context.Context, a Attempt) {
	if s.events == nil {
		return
	}
	if err := s.events.AttemptFinished(ctx, a); err != nil {
		log.Printf("ujian: event log append for attempt %s failed: %v", a.ID, err)
	}
}

// Preview aggregates a practice-mode attempt in progress without changing it.
func (s *Service) Preview(ctx context.Context, attemptID, requesterID string) (Completion, error) {
	a, err := s.ownedAttempt(ctx, attemptID, requesterID)
	if err != nil {
		return Completion{}, err
	}
	if !a.Snapshot.PracticeMode {
		return Completion{}, fmt.Errorf("%w: preview is only available in practice mode", ErrInvalidState)
	}
	if a.Status != StatusInProgress {
		return Completion{}, fmt.Errorf("%w: attempt %s is %s", ErrInvalidState, attemptID, a.Status)
	}
	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return Completion{}, err
	}
	return completionFrom(attemptID, aggregate(a, answers)), nil
}
