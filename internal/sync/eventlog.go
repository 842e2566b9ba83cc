package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-ujian/internal/exam"
)

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string
	DataJSON  string
	CreatedAt int64
}

const (
	TypeAttemptCompleted = "attempt.completed"
	TypeAttemptAbandoned = "attempt.abandoned"
)

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, r.now().Unix())
	return err
}

// Since returns events with an offset greater than after, oldest first.
func (r *EventRepo) Since(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at FROM event_log
		 WHERE "offset" > $1 ORDER BY "offset" LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type attemptPayload struct {
	AttemptID         string      `json:"attempt_id"`
	UjianID           string      `json:"ujian_id"`
	UserID            string      `json:"user_id"`
	Status            exam.Status `json:"status"`
	StartedAt         int64       `json:"started_at"`
	CompletedAt       *int64      `json:"completed_at,omitempty"`
	Score             *float64    `json:"score,omitempty"`
	TotalPoints       *int        `json:"total_points,omitempty"`
	TotalPointsEarned *int        `json:"total_points_earned,omitempty"`
}

// AttemptEvents appends finished attempts to the event log so other sites
// can replay them.
type AttemptEvents struct {
	Repo   *EventRepo
	SiteID string
}

func (ae AttemptEvents) AttemptFinished(ctx context.Context, a exam.Attempt) error {
	var typ string
	switch a.Status {
	case exam.StatusCompleted:
		typ = TypeAttemptCompleted
	case exam.StatusAbandoned:
		typ = TypeAttemptAbandoned
	default:
		return fmt.Errorf("attempt %s is not finished (%s)", a.ID, a.Status)
	}
	p := attemptPayload{
		AttemptID:   a.ID,
		UjianID:     a.ExamID,
		UserID:      a.UserID,
		Status:      a.Status,
		StartedAt:   a.StartedAt,
		CompletedAt: a.CompletedAt,
	}
	if a.Result != nil {
		score := a.Result.Score
		p.Score = &score
		p.TotalPoints = &a.Result.TotalPoints
		p.TotalPointsEarned = &a.Result.TotalPointsEarned
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return ae.Repo.Append(ctx, Event{SiteID: ae.SiteID, Type: typ, Key: a.ID, DataJSON: string(b)})
}
