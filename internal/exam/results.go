package exam

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-ujian/internal/grading"
)

type ResultItem struct {
	QuestionID    string         `json:"question_id"`
	QuestionText  string         `json:"question_text"`
	QuestionType  QuestionType   `json:"question_type"`
	Options       []Option       `json:"options,omitempty"`
	UserAnswer    *grading.Value `json:"user_answer"`
	CorrectAnswer grading.Value  `json:"correct_answer"`
	IsCorrect     bool           `json:"is_correct"`
	PointsEarned  int            `json:"points_earned"`
	MaxPoints     int            `json:"max_points"`
	AnsweredAt    *int64         `json:"answered_at,omitempty"`
}

// Result is the full breakdown of a completed attempt, one item per snapshot
// question in display order (unanswered questions included).
type Result struct {
	AttemptID   string       `json:"attempt_id"`
	Exam        ExamInfo     `json:"ujian"`
	Status      Status       `json:"status"`
	StartedAt   int64        `json:"started_at"`
	CompletedAt *int64       `json:"completed_at,omitempty"`
	Score       float64      `json:"score"`
	TotalPoints int          `json:"total_points"`
	Summary     ScoreSummary `json:"summary"`
	Items       []ResultItem `json:"items"`
}

// Result is available once the attempt is completed.
func (s *Service) Result(ctx context.Context, attemptID, requesterID string) (Result, error) {
	a, err := s.ownedAttempt(ctx, attemptID, requesterID)
	if err != nil {
		return Result{}, err
	}
	if a.Status != StatusCompleted || a.Result == nil {
		return Result{}, fmt.Errorf("%w: attempt %s is %s, result available after completion", ErrInvalidState, attemptID, a.Status)
	}
	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return Result{}, err
	}
	byQ := make(map[string]Answer, len(answers))
	for _, ans := range answers {
		byQ[ans.QuestionID] = ans
	}

	c := completionFrom(a.ID, *a.Result)
	out := Result{
		AttemptID:   a.ID,
		Exam:        examInfo(a),
		Status:      a.Status,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
		Score:       c.Score,
		TotalPoints: c.TotalPoints,
		Summary:     c.Summary,
		Items:       make([]ResultItem, 0, len(a.Snapshot.Questions)),
	}
	for _, q := range a.Snapshot.Questions {
		item := ResultItem{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			QuestionType:  q.Type,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			MaxPoints:     q.Points,
		}
		if ans, ok := byQ[q.ID]; ok {
			ua := ans.UserAnswer
			at := ans.AnsweredAt
			item.UserAnswer = &ua
			item.AnsweredAt = &at
			item.IsCorrect = ans.IsCorrect != nil && *ans.IsCorrect
			item.PointsEarned = ans.PointsEarned
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// ---- listings ----

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type AttemptSummary struct {
	ID           string   `json:"id"`
	ExamID       string   `json:"ujian_id"`
	ExamTitle    string   `json:"ujian_title"`
	PracticeMode bool     `json:"practice_mode"`
	Status       Status   `json:"status"`
	StartedAt    int64    `json:"started_at"`
	CompletedAt  *int64   `json:"completed_at,omitempty"`
	Score        *float64 `json:"score"`
	TotalPoints  *int     `json:"total_points"`
}

type AttemptPage struct {
	Data       []AttemptSummary `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be >= 1", ErrValidation)
	}
	if limit < 1 || limit > maxPageSize {
		return 0, 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, maxPageSize)
	}
	return page, limit, nil
}

// MyAttempts lists a user's attempt history, newest first. status may be
// empty or "all" for no filter.
func (s *Service) MyAttempts(ctx context.Context, userID, status string, page, limit int) (AttemptPage, error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return AttemptPage{}, err
	}
	var st Status
	switch status {
	case "", "all":
	case string(StatusInProgress), string(StatusCompleted), string(StatusAbandoned):
		st = Status(status)
	default:
		return AttemptPage{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	list, total, err := s.store.ListAttempts(ctx, AttemptListOpts{
		UserID: userID,
		Status: st,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return AttemptPage{}, err
	}
	out := AttemptPage{
		Data: make([]AttemptSummary, 0, len(list)),
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}
	for _, a := range list {
		sum := AttemptSummary{
			ID:           a.ID,
			ExamID:       a.ExamID,
			ExamTitle:    a.Snapshot.Title,
			PracticeMode: a.Snapshot.PracticeMode,
			Status:       a.Status,
			StartedAt:    a.StartedAt,
			CompletedAt:  a.CompletedAt,
		}
		if a.Result != nil {
			score := grading.RoundScore(a.Result.Score)
			pts := a.Result.TotalPoints
			sum.Score = &score
			sum.TotalPoints = &pts
		}
		out.Data = append(out.Data, sum)
	}
	return out, nil
}

// Available lists active exams for a user, hiding those already completed
// when resubmission is off and nothing is in progress.
func (s *Service) Available(ctx context.Context, userID string, page, limit int) ([]ExamSummary, error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListActiveExams(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	for i := range list {
		e := &list[i]
		e.CanStart = e.TotalQuestions > 0 && (!e.HasCompleted || e.AllowResubmit || e.InProgressAttemptID != "")
	}
	return list, nil
}

// hiddenFromListing reports whether a finished exam should drop out of the
// available list. Stores apply it before paging.
func hiddenFromListing(e ExamSummary) bool {
	return e.HasCompleted && !e.AllowResubmit && e.InProgressAttemptID == ""
}

// PutExam validates and stores an exam definition. Running attempts are not
// affected: they read their own snapshot.
func (s *Service) PutExam(ctx context.Context, e Exam) error {
	if err := ValidateExam(e); err != nil {
		return err
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = s.now().Unix()
	}
	return s.store.PutExam(ctx, e)
}
