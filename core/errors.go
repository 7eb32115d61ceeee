package core

import (
	"errors"
	"fmt"
	"go/token"
)

// ErrorKind classifies why the expansion was aborted.
type ErrorKind int

const (
	// ShapeError is a malformed macro definition.
	ShapeError ErrorKind = iota
	// ResolutionError is a site whose types or signatures could not be resolved.
	ResolutionError
	// UsageError is a site using a macro in a way that is not supported.
	UsageError
	// DuplicateError is a macro registered twice while duplicates are rejected.
	DuplicateError
	// LoadError is a package that failed to load or type-check.
	LoadError
)

func (k ErrorKind) String() string {
	switch k {
	case ShapeError:
		return "invalid macro definition"
	case ResolutionError:
		return "unresolved macro site"
	case UsageError:
		return "invalid macro usage"
	case DuplicateError:
		return "duplicate macro"
	case LoadError:
		return "load failure"
	}
	return "unknown"
}

var ErrRegistrySealed = errors.New("macro registry is sealed")

// MacroError is the single error type returned by the pipeline.
type MacroError struct {
	Kind    ErrorKind
	Pos     token.Position
	Message string
	Cause   error
}

func (e *MacroError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *MacroError) Unwrap() error {
	return e.Cause
}

func newError(kind ErrorKind, pos token.Position, format string, args ...any) *MacroError {
	return &MacroError{
		Kind:    kind,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf reports the kind of the first MacroError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var merr *MacroError
	if errors.As(err, &merr) {
		return merr.Kind, true
	}
	return 0, false
}
