package ir

import (
	"errors"
	"fmt"

	"github.com/bawdo/goshawk/datatypes"
)

// ErrUnresolvedReference is wrapped by errors for column references that name
// a column absent from the referenced relation's schema, or node ids outside
// the arena.
var ErrUnresolvedReference = errors.New("unresolved reference")

// ErrAmbiguousAlias is wrapped by errors for output names that collide after
// alias resolution, and for self joins built without a distinguishing view.
var ErrAmbiguousAlias = errors.New("ambiguous alias")

func unresolvedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnresolvedReference, fmt.Sprintf(format, args...))
}

func ambiguousf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAmbiguousAlias, fmt.Sprintf(format, args...))
}

func typef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", datatypes.ErrTypeMismatch, fmt.Sprintf(format, args...))
}
