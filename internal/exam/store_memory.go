package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	exams    map[string]Exam
	attempts map[string]Attempt
	answers  map[string]map[string]Answer // attemptID -> questionID -> answer
	active   map[string]string            // user|exam -> attemptID
	seq      map[string]int               // attemptID -> creation order
	next     int
}

// NewInMemoryStore returns a Store kept in process memory.
func NewInMemoryStore() Store {
	return &memoryStore{
		exams:    map[string]Exam{},
		attempts: map[string]Attempt{},
		answers:  map[string]map[string]Answer{},
		active:   map[string]string{},
		seq:      map[string]int{},
	}
}

func activeKey(userID, examID string) string { return userID + "|" + examID }

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.exams[e.ID]; ok {
		e.CreatedAt = prev.CreatedAt
	}
	m.exams[e.ID] = cloneExam(e)
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("%w: exam %s", ErrNotFound, id)
	}
	return cloneExam(e), nil
}

func (m *memoryStore) ListActiveExams(_ context.Context, userID string, limit, offset int) ([]ExamSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.exams))
	for id, e := range m.exams {
		if e.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := []ExamSummary{}
	skipped := 0
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := m.exams[id]
		sum := ExamSummary{
			ID:             e.ID,
			Title:          e.Title,
			Description:    e.Description,
			MaxQuestions:   e.MaxQuestions,
			PracticeMode:   e.PracticeMode,
			AllowResubmit:  e.AllowResubmit,
			TotalQuestions: len(e.Questions),
		}
		for _, a := range m.attempts {
			if a.UserID == userID && a.ExamID == id && a.Status == StatusCompleted {
				sum.HasCompleted = true
			}
		}
		sum.InProgressAttemptID = m.active[activeKey(userID, id)]
		if hiddenFromListing(sum) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[a.ExamID]; !ok {
		return Attempt{}, fmt.Errorf("%w: exam %s", ErrNotFound, a.ExamID)
	}
	k := activeKey(a.UserID, a.ExamID)
	if _, exists := m.active[k]; exists {
		return Attempt{}, ErrActiveAttemptExists
	}
	a.Status = StatusInProgress
	m.attempts[a.ID] = a
	m.active[k] = a.ID
	m.next++
	m.seq[a.ID] = m.next
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, id)
	}
	return a, nil
}

func (m *memoryStore) ActiveAttempt(_ context.Context, userID, examID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.active[activeKey(userID, examID)]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: no active attempt", ErrNotFound)
	}
	return m.attempts[id], nil
}

func (m *memoryStore) HasCompleted(_ context.Context, userID, examID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.UserID == userID && a.ExamID == examID && a.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []Attempt
	for _, a := range m.attempts {
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		all = append(all, a)
	}
	// newest first; creation order breaks ties within the same second
	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt != all[j].StartedAt {
			return all[i].StartedAt > all[j].StartedAt
		}
		return m.seq[all[i].ID] > m.seq[all[j].ID]
	})
	total := len(all)
	if opts.Offset >= total {
		return []Attempt{}, total, nil
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, total, nil
}

func (m *memoryStore) UpsertAnswer(_ context.Context, ans Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[ans.AttemptID]
	if !ok {
		return fmt.Errorf("%w: attempt %s", ErrNotFound, ans.AttemptID)
	}
	if a.Status != StatusInProgress {
		return fmt.Errorf("%w: attempt %s is %s", ErrInvalidState, a.ID, a.Status)
	}
	byQ, ok := m.answers[ans.AttemptID]
	if !ok {
		byQ = map[string]Answer{}
		m.answers[ans.AttemptID] = byQ
	}
	byQ[ans.QuestionID] = ans
	a.LastActivityAt = ans.AnsweredAt
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) ListAnswers(_ context.Context, attemptID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.answersLocked(attemptID), nil
}

func (m *memoryStore) answersLocked(attemptID string) []Answer {
	out := make([]Answer, 0, len(m.answers[attemptID]))
	for _, ans := range m.answers[attemptID] {
		out = append(out, ans)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnsweredAt != out[j].AnsweredAt {
			return out[i].AnsweredAt < out[j].AnsweredAt
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

func (m *memoryStore) CompleteAttempt(_ context.Context, attemptID string, at int64, score ScoreFunc) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.transitionLocked(attemptID, StatusCompleted, at)
	if err != nil {
		return Attempt{}, err
	}
	sum := score(a, m.answersLocked(attemptID))
	a.Result = &sum
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) AbandonAttempt(_ context.Context, attemptID string, at int64) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.transitionLocked(attemptID, StatusAbandoned, at)
	if err != nil {
		return Attempt{}, err
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) transitionLocked(attemptID string, to Status, at int64) (Attempt, error) {
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
	}
	if a.Status != StatusInProgress {
		return Attempt{}, fmt.Errorf("%w: attempt %s is %s", ErrInvalidState, a.ID, a.Status)
	}
	a.Status = to
	if to == StatusCompleted {
		a.CompletedAt = &at
	}
	a.LastActivityAt = at
	delete(m.active, activeKey(a.UserID, a.ExamID))
	return a, nil
}

func cloneExam(e Exam) Exam {
	qs := make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]Option(nil), q.Options...)
		qs[i] = q
	}
	e.Questions = qs
	return e
}
