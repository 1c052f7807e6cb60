package worldmodel

import "fmt"

// DomainInvariantError reports a violation of one of World's structural
// invariants (spec §3 World invariants, §7 error taxonomy kind 2): a city
// missing a factor intensity, a person already resident elsewhere, mixed
// person variants within a world, or similar. It fails the offending
// constructor or mutating operation; callers must abort the mutation.
type DomainInvariantError struct {
	Op  string
	Msg string
}

func (e *DomainInvariantError) Error() string {
	return fmt.Sprintf("worldmodel: %s: %s", e.Op, e.Msg)
}

func newInvariantError(op, format string, args ...any) error {
	return &DomainInvariantError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
