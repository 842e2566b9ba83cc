package exam

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
)

// Selection is one picked question and, for choice types, the option ids in
// the order this attempt displays them.
type Selection struct {
	QuestionID  string   `json:"question_id"`
	OptionOrder []string `json:"option_order,omitempty"`
}

// SeedFromID derives a selector seed from an attempt id.
func SeedFromID(id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64())
}

// Select picks and orders the questions for one attempt. The same exam and
// seed always produce the same result.
func Select(e Exam, seed int64) ([]Selection, error) {
	n := len(e.Questions)
	if n == 0 {
		return nil, fmt.Errorf("%w: exam %s has no questions", ErrConfiguration, e.ID)
	}
	if e.MaxQuestions < 1 {
		return nil, fmt.Errorf("%w: exam %s max_questions must be >= 1", ErrConfiguration, e.ID)
	}
	rng := rand.New(rand.NewSource(seed))

	// work on indexes in canonical order so the seed alone decides the outcome
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	byOrder := func(s []int) {
		sort.SliceStable(s, func(a, b int) bool {
			return e.Questions[s[a]].OrderIndex < e.Questions[s[b]].OrderIndex
		})
	}
	byOrder(idx)

	picked := idx
	if n > e.MaxQuestions {
		// partial Fisher-Yates: the first MaxQuestions slots are a uniform sample
		for i := 0; i < e.MaxQuestions; i++ {
			j := i + rng.Intn(n-i)
			idx[i], idx[j] = idx[j], idx[i]
		}
		picked = idx[:e.MaxQuestions]
	}

	byOrder(picked)
	if e.ShuffleQuestions {
		rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	}

	out := make([]Selection, 0, len(picked))
	for _, i := range picked {
		q := e.Questions[i]
		sel := Selection{QuestionID: q.ID}
		if q.Type.HasOptions() && len(q.Options) > 0 {
			order := make([]string, len(q.Options))
			for k, o := range q.Options {
				order[k] = o.ID
			}
			if e.ShuffleAnswers {
				rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
			}
			sel.OptionOrder = order
		}
		out = append(out, sel)
	}
	return out, nil
}

// NewSnapshot freezes the selected questions of e, options reordered per sel.
func NewSnapshot(e Exam, seed int64, sel []Selection) Snapshot {
	byID := make(map[string]Question, len(e.Questions))
	for _, q := range e.Questions {
		byID[q.ID] = q
	}
	snap := Snapshot{
		Seed:         seed,
		Title:        e.Title,
		PracticeMode: e.PracticeMode,
		Questions:    make([]Question, 0, len(sel)),
	}
	for _, s := range sel {
		q, ok := byID[s.QuestionID]
		if !ok {
			continue
		}
		q.Options = reorderOptions(q.Options, s.OptionOrder)
		snap.Questions = append(snap.Questions, q)
	}
	return snap
}

func reorderOptions(opts []Option, order []string) []Option {
	if len(opts) == 0 {
		return nil
	}
	out := make([]Option, 0, len(opts))
	if len(order) == 0 {
		return append(out, opts...)
	}
	byID := make(map[string]Option, len(opts))
	for _, o := range opts {
		byID[o.ID] = o
	}
	for _, id := range order {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out
}
