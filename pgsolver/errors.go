package pgsolver

import "fmt"

// FailureKind is the three-way outcome classification of a solve.
type FailureKind uint8

const (
	OK FailureKind = iota
	NoSolution
	InternalError
)

// NoSolutionError is returned when the solver proves no assignment exists.
// Root is always an Incompatibility with no terms (a proof of
// unsatisfiability) whose Causes form a DAG down to leaf reasons.
type NoSolutionError struct {
	Root  *Incompatibility
	store *store
	names func(PackageID) string
}

func (e *NoSolutionError) Error() string {
	return "no compatible versions could be found: " + e.Explain()
}

// Explain renders the full derivation-graph explanation via the reporter.
// This is the only thing the core exposes for human consumption of a
// NoSolutionError; callers should not poke at Root/store directly.
func (e *NoSolutionError) Explain() string {
	lines, _ := Report(e.store, e.Root, e.names, DefaultBufferCap)
	return lines
}

// InternalFailure indicates a failure in the solver or its provider rather
// than an unsatisfiable set of constraints: the solver returns it when the
// provider's Versions or DependenciesOf call returns an error.
type InternalFailure struct {
	Msg string
}

func (e *InternalFailure) Error() string { return fmt.Sprintf("internal solver error: %s", e.Msg) }
