package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Value is an answer payload: either a single string or a list of strings.
// Both user answers and answer keys use it.
type Value struct {
	single string
	list   []string
	multi  bool
	set    bool
}

// Single wraps one string answer (mcq, input).
func Single(s string) Value { return Value{single: s, set: true} }

// Multiple wraps a list answer (multiple_select). A nil list becomes empty.
func Multiple(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{list: cp, multi: true, set: true}
}

func (v Value) IsZero() bool     { return !v.set }
func (v Value) IsMultiple() bool { return v.set && v.multi }

// Str returns the single string, ok=false for lists and unset values.
func (v Value) Str() (string, bool) {
	if !v.set || v.multi {
		return "", false
	}
	return v.single, true
}

// List returns a copy of the list, ok=false for single strings and unset values.
func (v Value) List() ([]string, bool) {
	if !v.set || !v.multi {
		return nil, false
	}
	cp := make([]string, len(v.list))
	copy(cp, v.list)
	return cp, true
}

func (v Value) String() string {
	if v.multi {
		return "[" + strings.Join(v.list, ", ") + "]"
	}
	return v.single
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case !v.set:
		return []byte("null"), nil
	case v.multi:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.single)
	}
}

var errValueShape = errors.New("answer must be a string or an array of strings")

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Single(s)
		return nil
	case '[':
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return errValueShape
		}
		*v = Multiple(arr...)
		return nil
	default:
		return errValueShape
	}
}
