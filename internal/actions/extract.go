package actions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarkerKey is the reserved key an assistant reply uses to tag its embedded
// action payload. The key and the action-list names below are the wire
// contract with the assistant and must not change.
const MarkerKey = "__task_actions__"

type CreateAction struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
}

type PriorityUpdateAction struct {
	TaskID   string `json:"taskId"`
	Priority string `json:"priority"`
}

// Batch is one extracted set of instructions. Lists are applied in field
// order: creations first, then deletions, then status changes, so a batch can
// reference what it just created and a delete-then-recreate pair stays
// unambiguous.
type Batch struct {
	Create         []CreateAction         `json:"create"`
	Delete         []string               `json:"delete"`
	Complete       []string               `json:"complete"`
	Uncomplete     []string               `json:"uncomplete"`
	PriorityUpdate []PriorityUpdateAction `json:"priority-update"`
}

// IsEmpty reports whether the batch carries no instructions at all.
func (b *Batch) IsEmpty() bool {
	return len(b.Create) == 0 && len(b.Delete) == 0 && len(b.Complete) == 0 &&
		len(b.Uncomplete) == 0 && len(b.PriorityUpdate) == 0
}

// ExtractionError reports a payload that carried the marker but failed the
// schema. Extraction fails closed on it: no actions are applied and the
// original text is returned untouched.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("action extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "action extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// wrapper is the outer object containing exactly the marker key.
type wrapper struct {
	Actions *Batch `json:"__task_actions__"`
}

// Extract scans an assistant reply for the marker payload. When no marker is
// present the text is returned unchanged with a nil batch. When the payload
// parses, the matched fragment is stripped from the display text and the
// batch returned. A marker with a malformed payload yields an
// *ExtractionError and the original text.
func Extract(text string) (string, *Batch, error) {
	idx := strings.Index(text, `"`+MarkerKey+`"`)
	if idx < 0 {
		return text, nil, nil
	}

	start, ok := objectStart(text, idx)
	if !ok {
		return text, nil, &ExtractionError{Reason: "marker key is not inside a JSON object"}
	}
	end, ok := objectEnd(text, start)
	if !ok {
		return text, nil, &ExtractionError{Reason: "unterminated action payload"}
	}
	fragment := text[start : end+1]

	dec := json.NewDecoder(strings.NewReader(fragment))
	dec.DisallowUnknownFields()
	var w wrapper
	if err := dec.Decode(&w); err != nil {
		return text, nil, &ExtractionError{Reason: "payload does not match the action schema", Err: err}
	}
	if w.Actions == nil {
		return text, nil, &ExtractionError{Reason: "marker key holds no action object"}
	}

	display := strings.TrimSpace(text[:start] + text[end+1:])
	return display, w.Actions, nil
}

// objectStart walks left from the marker key and returns the offset of the
// wrapper's opening brace. Only whitespace may sit between the brace and the
// key.
func objectStart(s string, keyIdx int) (int, bool) {
	for i := keyIdx - 1; i >= 0; i-- {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return i, true
		default:
			return 0, false
		}
	}
	return 0, false
}

// objectEnd returns the offset of the brace closing the object opened at
// start, honoring string literals and escapes.
func objectEnd(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
