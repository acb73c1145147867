package analysis

import "fmt"

// ErrKind classifies why a query was refused or failed.
type ErrKind int

const (
	// ErrInvalidQuery: a precondition on the query definition failed.
	ErrInvalidQuery ErrKind = iota
	// ErrUnsupportedAttribute: an attribute path could not be resolved.
	ErrUnsupportedAttribute
	// ErrUnsupportedOperator: a filter used an operator this compiler lacks.
	ErrUnsupportedOperator
	// ErrInternal: compiler/executor contract violation, not a user error.
	ErrInternal
)

func (k ErrKind) String() string {
	switch k {
	case ErrInvalidQuery:
		return "invalid_query"
	case ErrUnsupportedAttribute:
		return "unsupported_attribute"
	case ErrUnsupportedOperator:
		return "unsupported_operator"
	case ErrInternal:
		return "internal"
	}
	return "unknown"
}

// QueryError carries the kind plus a human-readable reason. Client errors
// (everything except ErrInternal) are safe to surface verbatim.
type QueryError struct {
	Kind   ErrKind
	Reason string
}

func (e *QueryError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Reason) }

// IsClientError reports whether the failure is the caller's fault.
func (e *QueryError) IsClientError() bool { return e.Kind != ErrInternal }

func invalidQuery(format string, args ...any) *QueryError {
	return &QueryError{Kind: ErrInvalidQuery, Reason: fmt.Sprintf(format, args...)}
}

func unsupportedAttribute(attr string) *QueryError {
	return &QueryError{Kind: ErrUnsupportedAttribute, Reason: fmt.Sprintf("unsupported attribute: %s", attr)}
}

func unsupportedOperator(op string) *QueryError {
	return &QueryError{Kind: ErrUnsupportedOperator, Reason: fmt.Sprintf("unsupported operator: %s", op)}
}

func internalError(format string, args ...any) *QueryError {
	return &QueryError{Kind: ErrInternal, Reason: fmt.Sprintf(format, args...)}
}
