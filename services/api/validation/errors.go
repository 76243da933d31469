package validation

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable code of a validation failure.
type Kind string

const (
	KindEmptyInput        Kind = "EMPTY_INPUT"
	KindSyntax            Kind = "XML_SYNTAX_ERROR"
	KindSchema            Kind = "XSD_VALIDATION_ERROR"
	KindBusinessRule      Kind = "BUSINESS_RULE_ERROR"
	KindSchemaUnavailable Kind = "SCHEMA_UNAVAILABLE"
	KindPersistence       Kind = "PERSISTENCE_ERROR"
)

// Sentinel errors.
var (
	ErrEmptyInput        = &EmptyInputError{}
	ErrSchemaUnavailable = errors.New("reference schema is not loaded")
)

// Failure is implemented by every error the pipeline returns.
type Failure interface {
	error
	Kind() Kind
}

// EmptyInputError reports a request without any content.
type EmptyInputError struct{}

func (*EmptyInputError) Error() string { return "document is empty" }
func (*EmptyInputError) Kind() Kind    { return KindEmptyInput }

// SyntaxError reports markup that is not well-formed.
type SyntaxError struct {
	Details string
}

func (e *SyntaxError) Error() string { return "malformed XML: " + e.Details }
func (*SyntaxError) Kind() Kind      { return KindSyntax }

// SchemaError reports a well-formed document that does not conform to the
// reference schema. Details holds the schema engine diagnostics verbatim.
type SchemaError struct {
	Details string
}

func (e *SchemaError) Error() string { return "schema validation failed: " + e.Details }
func (*SchemaError) Kind() Kind      { return KindSchema }

// RuleError reports the first reading that violates a business rule.
type RuleError struct {
	Message string
	Locator string
}

func (e *RuleError) Error() string { return fmt.Sprintf("%s (at %s)", e.Message, e.Locator) }
func (*RuleError) Kind() Kind      { return KindBusinessRule }

// UnavailableError wraps ErrSchemaUnavailable with the load failure cause.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return ErrSchemaUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSchemaUnavailable, e.Cause)
}

func (*UnavailableError) Kind() Kind { return KindSchemaUnavailable }

// Is makes errors.Is(err, ErrSchemaUnavailable) hold.
func (*UnavailableError) Is(target error) bool { return target == ErrSchemaUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Cause }

// PersistenceError reports a validated document that could not be stored.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "failed to store document"
	}
	return "failed to store document: " + e.Err.Error()
}

func (*PersistenceError) Kind() Kind      { return KindPersistence }
func (e *PersistenceError) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or "" for nil and foreign errors.
func KindOf(err error) Kind {
	var f Failure
	if errors.As(err, &f) {
		return f.Kind()
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ClientFault reports whether the failure was caused by the submitted
// document rather than by the server.
func ClientFault(kind Kind) bool {
	switch kind {
	case KindEmptyInput, KindSyntax, KindSchema, KindBusinessRule:
		return true
	}
	return false
}
