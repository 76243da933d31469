// Package validation implements the two-layer check applied to every
// submitted greenhouse document: structural conformance against the
// reference XSD, then range rules over the readings.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/02loveslollipop/estufa-iot/services/api/xmldoc"
)

// State is a step of the validation state machine.
type State uint8

const (
	StateReceived State = iota
	StateParsed
	StateSchemaValid
	StateRuleValid
	StateAccepted
	StateRejected // empty input or no schema; never left Received
	StateSyntaxError
	StateSchemaError
	StateRuleError
	StatePersistenceFault
)

var stateNames = map[State]string{
	StateReceived:         "received",
	StateParsed:           "parsed",
	StateSchemaValid:      "schema_valid",
	StateRuleValid:        "rule_valid",
	StateAccepted:         "accepted",
	StateRejected:         "rejected",
	StateSyntaxError:      "syntax_error",
	StateSchemaError:      "schema_error",
	StateRuleError:        "rule_error",
	StatePersistenceFault: "persistence_fault",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	switch s {
	case StateReceived, StateParsed, StateSchemaValid, StateRuleValid:
		return false
	}
	return true
}

// StateOf maps a pipeline or ingest error to the terminal state it represents.
func StateOf(err error) State {
	switch KindOf(err) {
	case "":
		if err == nil {
			return StateAccepted
		}
		return StateRejected
	case KindSyntax:
		return StateSyntaxError
	case KindSchema:
		return StateSchemaError
	case KindBusinessRule:
		return StateRuleError
	case KindPersistence:
		return StatePersistenceFault
	default:
		return StateRejected
	}
}

// Transition records one step of a single validation run.
type Transition struct {
	From     State
	To       State
	Duration time.Duration
}

// Observer receives every transition of every run. It must be safe for
// concurrent use.
type Observer func(Transition)

// Document is a fully validated submission ready to be persisted. Raw is a
// private copy of the submitted bytes.
type Document struct {
	Raw      []byte
	Root     string
	Sensors  []xmldoc.Sensor
	Readings []xmldoc.Reading
	State    State
}

// Content returns the flattened view of the document.
func (d *Document) Content() *xmldoc.Content {
	return &xmldoc.Content{Root: d.Root, Sensors: d.Sensors, Readings: d.Readings}
}

// Pipeline runs parse, schema check and rule check in that order. It holds
// no per-request state and may be shared between goroutines.
type Pipeline struct {
	schema   StructureValidator
	rules    *RuleValidator
	observer Observer
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver installs a transition observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithClock is useful for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline wires the two validation layers together.
func NewPipeline(schema StructureValidator, rules *RuleValidator, opts ...Option) *Pipeline {
	if rules == nil {
		rules = NewRuleValidator(DefaultLimits())
	}
	p := &Pipeline{
		schema: schema,
		rules:  rules,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether the schema layer can serve requests.
func (p *Pipeline) Available() error {
	if p.schema == nil {
		return &UnavailableError{Cause: errors.New("no schema validator configured")}
	}
	return p.schema.Available()
}

// Validate runs the full state machine over raw document bytes. It returns
// exactly one error on failure.
func (p *Pipeline) Validate(raw []byte) (*Document, error) {
	run := &runTrace{p: p, state: StateReceived, mark: p.now()}

	if err := p.Available(); err != nil {
		run.step(StateRejected)
		return nil, err
	}
	if len(raw) == 0 {
		run.step(StateRejected)
		return nil, ErrEmptyInput
	}

	tree, err := xmldoc.Parse(raw)
	if err != nil {
		run.step(StateSyntaxError)
		return nil, &SyntaxError{Details: err.Error()}
	}
	defer tree.Free()
	run.step(StateParsed)

	if err := p.schema.ValidateStructure(tree); err != nil {
		if errors.Is(err, ErrSchemaUnavailable) {
			run.step(StateRejected)
			return nil, err
		}
		run.step(StateSchemaError)
		var se *SchemaError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &SchemaError{Details: err.Error()}
	}
	run.step(StateSchemaValid)

	content, err := tree.Extract()
	if err != nil {
		run.step(StateSchemaError)
		return nil, &SchemaError{Details: err.Error()}
	}

	if err := p.rules.Validate(content); err != nil {
		run.step(StateRuleError)
		return nil, err
	}
	run.step(StateRuleValid)

	return &Document{
		Raw:      bytes.Clone(raw),
		Root:     content.Root,
		Sensors:  content.Sensors,
		Readings: content.Readings,
		State:    StateRuleValid,
	}, nil
}

type runTrace struct {
	p     *Pipeline
	state State
	mark  time.Time
}

func (r *runTrace) step(to State) {
	now := r.p.now()
	if r.p.observer != nil {
		r.p.observer(Transition{From: r.state, To: to, Duration: now.Sub(r.mark)})
	}
	r.state = to
	r.mark = now
}
