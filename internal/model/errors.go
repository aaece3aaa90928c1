package model

import "fmt"

// InvalidTransitionError is returned when a state-machine operation is
// attempted from a status that does not permit it. Callers must treat it as a
// logic or race error and surface it, never swallow it.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Entity, e.From, e.To)
}

func invalidTransition(entity string, from, to fmt.Stringer) *InvalidTransitionError {
	return &InvalidTransitionError{Entity: entity, From: from.String(), To: to.String()}
}
