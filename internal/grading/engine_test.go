package grading

import (
	"encoding/json"
	"testing"
)

func TestGrade_ByType(t *testing.T) {
	g := NewDefaultGrader()
	tests := []struct {
		name    string
		qType   string
		key     Value
		resp    Value
		correct bool
	}{
		{name: "mcq one-element key", qType: "mcq", key: Multiple("1"), resp: Single("1"), correct: true},
		{name: "mcq wrong", qType: "mcq", key: Multiple("1"), resp: Single("2"), correct: false},
		{name: "mcq string key", qType: "mcq", key: Single("b"), resp: Single("b"), correct: true},
		{name: "mcq is case sensitive", qType: "mcq", key: Single("b"), resp: Single("B"), correct: false},
		{name: "mcq two-element key never matches", qType: "mcq", key: Multiple("a", "b"), resp: Single("a"), correct: false},
		{name: "mcq list response", qType: "mcq", key: Single("a"), resp: Multiple("a"), correct: false},

		{name: "multi order independent", qType: "multiple_select", key: Multiple("5", "1", "3"), resp: Multiple("1", "3", "5"), correct: true},
		{name: "multi length mismatch", qType: "multiple_select", key: Multiple("1"), resp: Multiple("1", "2"), correct: false},
		{name: "multi different element", qType: "multiple_select", key: Multiple("1", "2"), resp: Multiple("1", "3"), correct: false},
		{name: "multi duplicates are a multiset", qType: "multiple_select", key: Multiple("1", "2"), resp: Multiple("1", "1"), correct: false},
		{name: "multi string key", qType: "multiple_select", key: Single("1"), resp: Multiple("1"), correct: false},
		{name: "multi string response", qType: "multiple_select", key: Multiple("1"), resp: Single("1"), correct: false},

		{name: "input trim and case", qType: "input", key: Multiple("linux"), resp: Single("  Linux  "), correct: true},
		{name: "input wrong", qType: "input", key: Multiple("Linux"), resp: Single("Windows"), correct: false},
		{name: "input string key", qType: "input", key: Single(" Paris"), resp: Single("paris"), correct: true},
		{name: "input uses first key only", qType: "input", key: Multiple("a", "b"), resp: Single("b"), correct: false},
		{name: "input empty key list", qType: "input", key: Multiple(), resp: Single("   "), correct: true},

		{name: "unknown type", qType: "essay", key: Single("x"), resp: Single("x"), correct: false},
		{name: "missing response", qType: "mcq", key: Single("x"), resp: Value{}, correct: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := g.Grade(Q{Type: tc.qType, Points: 3, CorrectAnswer: tc.key}, tc.resp)
			if res.Correct != tc.correct {
				t.Fatalf("correct: want %v, got %v", tc.correct, res.Correct)
			}
			wantPts := 0
			if tc.correct {
				wantPts = 3
			}
			if res.PointsEarned != wantPts {
				t.Fatalf("points: want %d, got %d", wantPts, res.PointsEarned)
			}
			if res.MaxPoints != 3 {
				t.Fatalf("max points: want 3, got %d", res.MaxPoints)
			}
		})
	}
}

func TestGrade_DoesNotReorderInputs(t *testing.T) {
	g := NewDefaultGrader()
	key := Multiple("b", "a")
	resp := Multiple("a", "b")
	if !g.Grade(Q{Type: "multiple_select", Points: 1, CorrectAnswer: key}, resp).Correct {
		t.Fatalf("expected correct")
	}
	list, _ := key.List()
	if list[0] != "b" || list[1] != "a" {
		t.Fatalf("answer key was mutated: %v", list)
	}
}

func TestValue_JSON(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`"x"`), &v); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if s, ok := v.Str(); !ok || s != "x" {
		t.Fatalf("want single x, got %v", v)
	}
	if err := json.Unmarshal([]byte(`["a","b"]`), &v); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if l, ok := v.List(); !ok || len(l) != 2 {
		t.Fatalf("want list of 2, got %v", v)
	}
	if err := json.Unmarshal([]byte(`[]`), &v); err != nil || !v.IsMultiple() {
		t.Fatalf("empty list should decode as multiple: %v %v", v, err)
	}
	for _, bad := range []string{`1`, `true`, `{"a":1}`, `[1,2]`} {
		if err := json.Unmarshal([]byte(bad), &v); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
	if err := json.Unmarshal([]byte(`null`), &v); err != nil || !v.IsZero() {
		t.Fatalf("null should decode to zero value")
	}
	out, _ := json.Marshal(Multiple())
	if string(out) != "[]" {
		t.Fatalf("empty multiple should marshal as [], got %s", out)
	}
}
