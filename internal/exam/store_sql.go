package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/mindengage-ujian/internal/db"
	"github.com/mind-engage/mindengage-ujian/internal/grading"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(dbh *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: dbh, driver: driver}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO ujian
			(id,title,description,max_questions,shuffle_questions,shuffle_answers,practice_mode,allow_resubmit,is_active,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description,
				max_questions=EXCLUDED.max_questions, shuffle_questions=EXCLUDED.shuffle_questions,
				shuffle_answers=EXCLUDED.shuffle_answers, practice_mode=EXCLUDED.practice_mode,
				allow_resubmit=EXCLUDED.allow_resubmit, is_active=EXCLUDED.is_active`,
			e.ID, e.Title, e.Description, e.MaxQuestions, e.ShuffleQuestions, e.ShuffleAnswers,
			e.PracticeMode, e.AllowResubmit, e.IsActive, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("put exam %s: %w", e.ID, err)
		}
		// attempts keep their own snapshot, so questions can be replaced wholesale
		if _, err := tx.ExecContext(ctx, `DELETE FROM ujian_questions WHERE ujian_id=$1`, e.ID); err != nil {
			return fmt.Errorf("put exam %s: clear questions: %w", e.ID, err)
		}
		for _, q := range e.Questions {
			opts, err := json.Marshal(nonNilOptions(q.Options))
			if err != nil {
				return err
			}
			key, err := json.Marshal(q.CorrectAnswer)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO ujian_questions
				(id,ujian_id,question_text,question_type,options_json,correct_answer_json,points,order_index)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				q.ID, e.ID, q.Text, string(q.Type), string(opts), string(key), q.Points, q.OrderIndex)
			if err != nil {
				return fmt.Errorf("put exam %s: question %s: %w", e.ID, q.ID, err)
			}
		}
		return nil
	})
}

func nonNilOptions(o []Option) []Option {
	if o == nil {
		return []Option{}
	}
	return o
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	var e Exam
	err := s.db.QueryRowContext(ctx, `SELECT id,title,description,max_questions,shuffle_questions,
		shuffle_answers,practice_mode,allow_resubmit,is_active,created_at FROM ujian WHERE id=$1`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.MaxQuestions, &e.ShuffleQuestions,
			&e.ShuffleAnswers, &e.PracticeMode, &e.AllowResubmit, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
		}
		return Exam{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id,question_text,question_type,options_json,
		correct_answer_json,points,order_index FROM ujian_questions WHERE ujian_id=$1 ORDER BY order_index, id`, id)
	if err != nil {
		return Exam{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var q Question
		var qType, opts, key string
		if err := rows.Scan(&q.ID, &q.Text, &qType, &opts, &key, &q.Points, &q.OrderIndex); err != nil {
			return Exam{}, err
		}
		q.Type = QuestionType(qType)
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return Exam{}, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		if len(q.Options) == 0 {
			q.Options = nil
		}
		if err := json.Unmarshal([]byte(key), &q.CorrectAnswer); err != nil {
			return Exam{}, fmt.Errorf("question %s correct answer: %w", q.ID, err)
		}
		e.Questions = append(e.Questions, q)
	}
	return e, rows.Err()
}

func (s *SQLStore) ListActiveExams(ctx context.Context, userID string, limit, offset int) ([]ExamSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.title, u.description, u.max_questions, u.practice_mode, u.allow_resubmit,
		       (SELECT COUNT(*) FROM ujian_questions q WHERE q.ujian_id = u.id),
		       EXISTS (SELECT 1 FROM ujian_attempts a
		               WHERE a.ujian_id = u.id AND a.user_id = $1 AND a.status = 'completed'),
		       COALESCE((SELECT a.id FROM ujian_attempts a
		                 WHERE a.ujian_id = u.id AND a.user_id = $1 AND a.status = 'in_progress' LIMIT 1), '')
		FROM ujian u
		WHERE u.is_active = TRUE
		  AND NOT (u.allow_resubmit = FALSE
		           AND EXISTS (SELECT 1 FROM ujian_attempts a
		                       WHERE a.ujian_id = u.id AND a.user_id = $1 AND a.status = 'completed')
		           AND NOT EXISTS (SELECT 1 FROM ujian_attempts a
		                           WHERE a.ujian_id = u.id AND a.user_id = $1 AND a.status = 'in_progress'))
		ORDER BY u.id
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExamSummary{}
	for rows.Next() {
		var e ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.MaxQuestions, &e.PracticeMode,
			&e.AllowResubmit, &e.TotalQuestions, &e.HasCompleted, &e.InProgressAttemptID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const attemptCols = `id,ujian_id,user_id,status,snapshot_json,started_at,completed_at,last_activity_at,
	score,total_points,total_points_earned,correct_answers,incorrect_answers,total_questions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var a Attempt
	var status, snap string
	var completedAt sql.NullInt64
	var score sql.NullFloat64
	var total, earned, correct, incorrect, questions sql.NullInt64
	if err := r.Scan(&a.ID, &a.ExamID, &a.UserID, &status, &snap, &a.StartedAt, &completedAt,
		&a.LastActivityAt, &score, &total, &earned, &correct, &incorrect, &questions); err != nil {
		return Attempt{}, err
	}
	a.Status = Status(status)
	if completedAt.Valid {
		v := completedAt.Int64
		a.CompletedAt = &v
	}
	if score.Valid {
		a.Result = &grading.Summary{
			Score:             score.Float64,
			TotalPoints:       int(total.Int64),
			TotalPointsEarned: int(earned.Int64),
			CorrectAnswers:    int(correct.Int64),
			IncorrectAnswers:  int(incorrect.Int64),
			TotalQuestions:    int(questions.Int64),
		}
	}
	if err := json.Unmarshal([]byte(snap), &a.Snapshot); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s snapshot: %w", a.ID, err)
	}
	return a, nil
}

func getAttempt(ctx context.Context, q queryer, id string) (Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM ujian_attempts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, id)
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	snap, err := json.Marshal(a.Snapshot)
	if err != nil {
		return Attempt{}, err
	}
	a.Status = StatusInProgress
	_, err = s.db.ExecContext(ctx, `INSERT INTO ujian_attempts
		(id,ujian_id,user_id,status,snapshot_json,seed,started_at,last_activity_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.ExamID, a.UserID, string(a.Status), string(snap), a.Snapshot.Seed, a.StartedAt, a.LastActivityAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Attempt{}, ErrActiveAttemptExists
		}
		return Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return getAttempt(ctx, s.db, id)
}

func (s *SQLStore) ActiveAttempt(ctx context.Context, userID, examID string) (Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM ujian_attempts
		WHERE user_id=$1 AND ujian_id=$2 AND status='in_progress'`, userID, examID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, fmt.Errorf("%w: no active attempt", ErrNotFound)
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) HasCompleted(ctx context.Context, userID, examID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ujian_attempts
		WHERE user_id=$1 AND ujian_id=$2 AND status='completed' LIMIT 1`, userID, examID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, int, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.ExamID != "" {
		add("ujian_id=$%d", opts.ExamID)
	}
	if opts.Status != "" {
		add("status=$%d", string(opts.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ujian_attempts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM ujian_attempts%s
		ORDER BY started_at DESC, id DESC LIMIT $%d OFFSET $%d`, attemptCols, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// notActive explains why a status-guarded update touched no row.
func notActive(ctx context.Context, q queryer, attemptID string) error {
	a, err := getAttempt(ctx, q, attemptID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: attempt %s is %s", ErrInvalidState, attemptID, a.Status)
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, ans Answer) error {
	payload, err := json.Marshal(ans.UserAnswer)
	if err != nil {
		return err
	}
	var isCorrect sql.NullBool
	if ans.IsCorrect != nil {
		isCorrect = sql.NullBool{Bool: *ans.IsCorrect, Valid: true}
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// touching the attempt row under the status guard orders this write
		// against a concurrent complete/abandon
		res, err := tx.ExecContext(ctx, `UPDATE ujian_attempts SET last_activity_at=$2
			WHERE id=$1 AND status='in_progress'`, ans.AttemptID, ans.AnsweredAt)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notActive(ctx, tx, ans.AttemptID)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO ujian_answers
			(attempt_id,question_id,user_answer_json,is_correct,points_earned,answered_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (attempt_id, question_id) DO UPDATE SET
				user_answer_json=EXCLUDED.user_answer_json,
				is_correct=EXCLUDED.is_correct,
				points_earned=EXCLUDED.points_earned,
				answered_at=EXCLUDED.answered_at`,
			ans.AttemptID, ans.QuestionID, string(payload), isCorrect, ans.PointsEarned, ans.AnsweredAt)
		if err != nil {
			return fmt.Errorf("upsert answer %s/%s: %w", ans.AttemptID, ans.QuestionID, err)
		}
		return nil
	})
}

func listAnswers(ctx context.Context, q queryer, attemptID string) ([]Answer, error) {
	rows, err := q.QueryContext(ctx, `SELECT attempt_id,question_id,user_answer_json,is_correct,points_earned,answered_at
		FROM ujian_answers WHERE attempt_id=$1 ORDER BY answered_at, question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var ans Answer
		var payload string
		var isCorrect sql.NullBool
		if err := rows.Scan(&ans.AttemptID, &ans.QuestionID, &payload, &isCorrect, &ans.PointsEarned, &ans.AnsweredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &ans.UserAnswer); err != nil {
			return nil, fmt.Errorf("answer %s/%s: %w", ans.AttemptID, ans.QuestionID, err)
		}
		if isCorrect.Valid {
			v := isCorrect.Bool
			ans.IsCorrect = &v
		}
		out = append(out, ans)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	return listAnswers(ctx, s.db, attemptID)
}

func (s *SQLStore) CompleteAttempt(ctx context.Context, attemptID string, at int64, score ScoreFunc) (Attempt, error) {
	var out Attempt
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE ujian_attempts SET status='completed', completed_at=$2, last_activity_at=$2
			WHERE id=$1 AND status='in_progress'`, attemptID, at)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notActive(ctx, tx, attemptID)
		}
		a, err := getAttempt(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		answers, err := listAnswers(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		sum := score(a, answers)
		_, err = tx.ExecContext(ctx, `UPDATE ujian_attempts SET score=$2, total_points=$3, total_points_earned=$4,
			correct_answers=$5, incorrect_answers=$6, total_questions=$7 WHERE id=$1`,
			attemptID, sum.Score, sum.TotalPoints, sum.TotalPointsEarned, sum.CorrectAnswers, sum.IncorrectAnswers, sum.TotalQuestions)
		if err != nil {
			return fmt.Errorf("store score: %w", err)
		}
		a.Result = &sum
		out = a
		return nil
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}

func (s *SQLStore) AbandonAttempt(ctx context.Context, attemptID string, at int64) (Attempt, error) {
	var out Attempt
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE ujian_attempts SET status='abandoned', last_activity_at=$2
			WHERE id=$1 AND status='in_progress'`, attemptID, at)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notActive(ctx, tx, attemptID)
		}
		out, err = getAttempt(ctx, tx, attemptID)
		return err
	})
	if err != nil {
		return Attempt{}, err
	}
	return out, nil
}
