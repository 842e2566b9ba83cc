package exam

import "github.com/mind-engage/mindengage-ujian/internal/grading"

type QuestionType string

const (
	TypeMCQ            QuestionType = "mcq"
	TypeMultipleSelect QuestionType = "multiple_select"
	TypeInput          QuestionType = "input"
)

// HasOptions reports whether the type is a choice type.
func (t QuestionType) HasOptions() bool {
	return t == TypeMCQ || t == TypeMultipleSelect
}

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

type Option struct {
	ID   string `json:"id" validate:"required"`
	Text string `json:"text"`
}

type Question struct {
	ID            string        `json:"id" validate:"required"`
	Text          string        `json:"question_text" validate:"required"`
	Type          QuestionType  `json:"question_type" validate:"required,oneof=mcq multiple_select input"`
	Options       []Option      `json:"options,omitempty" validate:"dive"`
	CorrectAnswer grading.Value `json:"correct_answer"`
	Points        int           `json:"points" validate:"min=0"`
	OrderIndex    int           `json:"order_index" validate:"min=0"`
}

// Exam is the ujian definition: rules plus the ordered question list.
type Exam struct {
	ID               string     `json:"id" validate:"required"`
	Title            string     `json:"title" validate:"required,max=255"`
	Description      string     `json:"description,omitempty"`
	MaxQuestions     int        `json:"max_questions" validate:"min=1"`
	ShuffleQuestions bool       `json:"shuffle_questions"`
	ShuffleAnswers   bool       `json:"shuffle_answers"`
	PracticeMode     bool       `json:"practice_mode"`
	AllowResubmit    bool       `json:"allow_resubmit"`
	IsActive         bool       `json:"is_active"`
	Questions        []Question `json:"questions" validate:"dive"`

	CreatedAt int64 `json:"-"` // stamped on store
}

// Snapshot is the attempt-specific selection fixed at start. Questions are
// frozen copies in display order, with options already in display order.
type Snapshot struct {
	Seed         int64      `json:"seed"`
	Title        string     `json:"title"`
	PracticeMode bool       `json:"practice_mode"`
	Questions    []Question `json:"questions"`
}

func (s Snapshot) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

type Attempt struct {
	ID             string           `json:"id"`
	ExamID         string           `json:"exam_id"`
	UserID         string           `json:"user_id"`
	Status         Status           `json:"status"`
	StartedAt      int64            `json:"started_at"`
	CompletedAt    *int64           `json:"completed_at,omitempty"`
	LastActivityAt int64            `json:"last_activity_at"`
	Result         *grading.Summary `json:"result,omitempty"` // set by complete only
	Snapshot       Snapshot         `json:"-"`
}

// Answer is unique per (AttemptID, QuestionID).
type Answer struct {
	AttemptID    string        `json:"attempt_id"`
	QuestionID   string        `json:"question_id"`
	UserAnswer   grading.Value `json:"user_answer"`
	IsCorrect    *bool         `json:"is_correct"`
	PointsEarned int           `json:"points_earned"`
	AnsweredAt   int64         `json:"answered_at"`
}

// ExamSummary is a row of the "available ujian" listing.
type ExamSummary struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	MaxQuestions        int    `json:"max_questions"`
	PracticeMode        bool   `json:"practice_mode"`
	AllowResubmit       bool   `json:"allow_resubmit"`
	TotalQuestions      int    `json:"total_questions"`
	HasCompleted        bool   `json:"has_completed"`
	InProgressAttemptID string `json:"in_progress_attempt_id,omitempty"`
	CanStart            bool   `json:"can_start"`
}
