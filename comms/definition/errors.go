package definition

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// ErrNotFound is returned by Store.FindByIdentifier when no definition exists
// for the identifier.
var ErrNotFound = xerrors.New("communication definition not found")

// Violation is a single schema-validation failure: the property path that
// failed and the validator's message.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// InvalidContextError reports that a channel's body context failed validation
// against the channel definition's context schema.
type InvalidContextError struct {
	Channel    string
	Violations []Violation
}

func (e *InvalidContextError) Error() string {
	return fmt.Sprintf("invalid context for channel %q: %s", e.Channel, joinViolations(e.Violations))
}

// InvalidSubjectError reports that a channel's subject failed validation
// against the channel definition's subject schema.
type InvalidSubjectError struct {
	Channel    string
	Violations []Violation
}

func (e *InvalidSubjectError) Error() string {
	return fmt.Sprintf("invalid subject for channel %q: %s", e.Channel, joinViolations(e.Violations))
}

// InvalidSchemaError reports that a channel definition's schema is not itself
// a valid JSON Schema document.
type InvalidSchemaError struct {
	Channel string
	// Which is "context" or "subject".
	Which string
	Err   error
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("invalid %s schema for channel %q: %v", e.Which, e.Channel, e.Err)
}

func (e *InvalidSchemaError) Unwrap() error {
	return e.Err
}

// UnknownChannelKindError is a fatal decode error: a stored channel definition
// names a channel kind this build does not know how to interpret.
type UnknownChannelKindError struct {
	Identifier string
	Channel    string
}

func (e *UnknownChannelKindError) Error() string {
	return fmt.Sprintf("unknown channel kind %q on definition %q", e.Channel, e.Identifier)
}

func joinViolations(violations []Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "; ")
}
