package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedAction marks an action whose shape cannot be decoded or executed.
// It is a programmer error: the producer violated the action contract.
var ErrMalformedAction = errors.New("malformed action")

// ErrPlaceholderRebound is returned when a second action claims a returnId that
// is already bound in the batch.
var ErrPlaceholderRebound = errors.New("placeholder already bound")

// ErrUnresolvedReference is returned when a placeholder cannot be resolved to a
// persisted id, even through the most-recent record fallback.
var ErrUnresolvedReference = errors.New("unresolved reference")

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsProgrammerError reports whether err signals an invariant violation that
// must abort the whole batch rather than a single action.
func IsProgrammerError(err error) bool {
	return errors.Is(err, ErrMalformedAction) || errors.Is(err, ErrPlaceholderRebound)
}
