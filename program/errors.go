package program

import "github.com/pkg/errors"

// ErrorKind classifies a graph-construction/build error, per spec §7.
type ErrorKind string

const (
	ErrUnknownId               ErrorKind = "unknown_id"
	ErrGraphInvariantViolation ErrorKind = "graph_invariant_violation"
	ErrIncompatibleLayout      ErrorKind = "incompatible_layout"
	ErrConfigurationError      ErrorKind = "configuration_error"
)

// GraphError is a fatal build error: a reference to a missing id, an edit
// that would break an invariant, a layout mismatch, or an incoherent
// option. GraphError is always returned to the caller -- it never aborts
// the process -- per spec §7's policy that construction/invariant
// violations are fatal to the *build*, not the program.
type GraphError struct {
	Kind   ErrorKind
	NodeID string
	msg    string
	cause  error
}

func (e *GraphError) Error() string {
	if e.NodeID != "" {
		return e.msg + " (node " + e.NodeID + ")"
	}
	return e.msg
}

func (e *GraphError) Unwrap() error { return e.cause }

func newGraphError(kind ErrorKind, nodeID string, format string, args ...any) *GraphError {
	return &GraphError{Kind: kind, NodeID: nodeID, msg: errors.Errorf(format, args...).Error()}
}

func unknownID(id string) *GraphError {
	return newGraphError(ErrUnknownId, id, "unknown node id %q", id)
}

func invariantViolation(nodeID, format string, args ...any) *GraphError {
	return newGraphError(ErrGraphInvariantViolation, nodeID, format, args...)
}

func incompatibleLayout(nodeID, format string, args ...any) *GraphError {
	return newGraphError(ErrIncompatibleLayout, nodeID, format, args...)
}

// ConfigurationError reports an incoherent combination of BuildOptions,
// e.g. a tuning mode that requires a profiling-enabled engine.
func ConfigurationError(format string, args ...any) *GraphError {
	return newGraphError(ErrConfigurationError, "", format, args...)
}
