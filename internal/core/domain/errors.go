package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConfiguration   = errors.New("configuration error")
	ErrSchema          = errors.New("schema error")
	ErrEvaluation      = errors.New("evaluation error")
	ErrTemporary       = errors.New("temporary failure")
	ErrCorruptArtifact = errors.New("corrupt index artifact")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// SchemaError reports a card that violates its structural invariants.
type SchemaError struct {
	CardID string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.CardID == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error: card %s: %s", e.CardID, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

func NewSchemaError(cardID, format string, args ...any) error {
	return &SchemaError{CardID: cardID, Reason: fmt.Sprintf(format, args...)}
}

// EvaluationError reports a formula step that could not be computed locally.
type EvaluationError struct {
	CardID   string
	Variable string
	Formula  string
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error: card %s: %s = %s: %v", e.CardID, e.Variable, e.Formula, e.Err)
}

func (e *EvaluationError) Unwrap() []error { return []error{ErrEvaluation, e.Err} }
