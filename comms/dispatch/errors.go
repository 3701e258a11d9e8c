package dispatch

import "fmt"

// DefinitionNotFoundError aborts a send before any side effect: the
// communication names a definition the store does not have.
type DefinitionNotFoundError struct {
	Identifier string
}

func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("communication definition not found: %s", e.Identifier)
}

// UnsupportedContextTypeError is a programmer error: a factory was handed a
// channel context of the wrong kind.
type UnsupportedContextTypeError struct {
	Factory string
	Context any
}

func (e *UnsupportedContextTypeError) Error() string {
	return fmt.Sprintf("%s factory cannot handle context of type %T", e.Factory, e.Context)
}
