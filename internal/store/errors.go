package store

import "fmt"

// ValidationError reports a malformed or missing field, or a referential
// integrity violation (missing parent, cross-project milestone reference,
// dependency cycle).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation that targeted a nonexistent entity.
type NotFoundError struct {
	Kind string // project / milestone / task
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
