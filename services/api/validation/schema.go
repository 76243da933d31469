package validation

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/lestrrat-go/libxml2/xsd"

	"github.com/02loveslollipop/estufa-iot/services/api/xmldoc"
)

// StructureValidator checks a parsed document against a document grammar.
type StructureValidator interface {
	// Available reports ErrSchemaUnavailable while no grammar is loaded.
	Available() error
	ValidateStructure(tree *xmldoc.Tree) error
}

// SchemaValidator validates documents against a compiled XSD.
type SchemaValidator struct {
	mu      sync.RWMutex
	schema  *xsd.Schema
	loadErr error
	closed  bool
}

var _ StructureValidator = (*SchemaValidator)(nil)

// NewSchemaValidator compiles the given XSD. A definition that fails to
// compile yields a validator whose every call reports ErrSchemaUnavailable.
func NewSchemaValidator(definition []byte) *SchemaValidator {
	v := &SchemaValidator{}
	schema, err := compileSchema(definition)
	if err != nil {
		v.loadErr = err
		return v
	}
	v.schema = schema
	return v
}

// LoadSchemaFile reads an XSD from disk and compiles it.
func LoadSchemaFile(path string) *SchemaValidator {
	data, err := os.ReadFile(path)
	if err != nil {
		return &SchemaValidator{loadErr: fmt.Errorf("read schema: %w", err)}
	}
	return NewSchemaValidator(data)
}

func compileSchema(definition []byte) (*xsd.Schema, error) {
	if len(definition) == 0 {
		return nil, errors.New("schema definition is empty")
	}
	schema, err := xsd.Parse(definition)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// Available returns nil when a schema is loaded.
func (v *SchemaValidator) Available() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.schema == nil {
		return &UnavailableError{Cause: v.loadErr}
	}
	return nil
}

// ValidateStructure checks element structure, datatypes, cardinalities and
// sensor reference integrity.
func (v *SchemaValidator) ValidateStructure(tree *xmldoc.Tree) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.schema == nil {
		return &UnavailableError{Cause: v.loadErr}
	}
	if tree == nil || tree.Document() == nil {
		return &SchemaError{Details: "no document to validate"}
	}

	err := v.schema.Validate(tree.Document())
	if err == nil {
		return nil
	}
	return &SchemaError{Details: diagnostics(err, tree.Raw())}
}

// Reload swaps in a new schema. When compilation fails a previously loaded
// schema stays active.
func (v *SchemaValidator) Reload(definition []byte) error {
	v.mu.RLock()
	closed := v.closed
	v.mu.RUnlock()
	if closed {
		return ErrValidatorClosed
	}

	schema, err := compileSchema(definition)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		if schema != nil {
			schema.Free()
		}
		return ErrValidatorClosed
	}

	if err != nil {
		if v.schema == nil {
			v.loadErr = err
		}
		return err
	}

	old := v.schema
	v.schema = schema
	v.loadErr = nil
	if old != nil {
		old.Free()
	}
	return nil
}

// ErrValidatorClosed is returned by Reload once Close has been called.
var ErrValidatorClosed = errors.New("schema validator closed")

// Close frees the compiled schema. The validator is unavailable afterwards
// and later reloads are refused.
func (v *SchemaValidator) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.schema != nil {
		v.schema.Free()
		v.schema = nil
	}
	v.closed = true
	v.loadErr = ErrValidatorClosed
}

// diagnostics renders the engine's messages one per line, each with the
// document line of the node it names when that can be recovered.
func diagnostics(err error, raw []byte) string {
	var multi interface{ Errors() []error }
	if errors.As(err, &multi) {
		errs := multi.Errors()
		if len(errs) > 0 {
			lines := make([]string, 0, len(errs))
			for _, e := range errs {
				lines = append(lines, withLine(strings.TrimSpace(e.Error()), raw))
			}
			return strings.Join(lines, "\n")
		}
	}
	return withLine(strings.TrimSpace(err.Error()), raw)
}
