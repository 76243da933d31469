package validation

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/02loveslollipop/estufa-iot/services/api/model"
)

type transitionLog struct {
	mu    sync.Mutex
	steps []Transition
}

func (l *transitionLog) observe(tr Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, tr)
}

func (l *transitionLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, 0, len(l.steps))
	for _, s := range l.steps {
		out = append(out, s.To)
	}
	return out
}

func TestPipelineAcceptsSample(t *testing.T) {
	log := &transitionLog{}
	p := newTestPipeline(t, WithObserver(log.observe))

	doc, err := p.Validate(model.Sample)
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	if doc.State != StateRuleValid {
		t.Fatalf("unexpected state %s", doc.State)
	}
	if !bytes.Equal(doc.Raw, model.Sample) {
		t.Fatalf("document bytes were altered")
	}
	if len(doc.Sensors) != 3 || len(doc.Readings) != 3 {
		t.Fatalf("unexpected content: %d sensors, %d readings", len(doc.Sensors), len(doc.Readings))
	}

	want := []State{StateParsed, StateSchemaValid, StateRuleValid}
	if diff := cmp.Diff(want, log.states()); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineEmptyInput(t *testing.T) {
	log := &transitionLog{}
	p := newTestPipeline(t, WithObserver(log.observe))

	_, err := p.Validate(nil)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if KindOf(err) != KindEmptyInput {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
	var syntax *SyntaxError
	if errors.As(err, &syntax) {
		t.Fatalf("empty input must not be reported as a syntax error")
	}
	if diff := cmp.Diff([]State{StateRejected}, log.states()); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineSyntaxError(t *testing.T) {
	log := &transitionLog{}
	p := newTestPipeline(t, WithObserver(log.observe))

	_, err := p.Validate([]byte(`<greenhouse id="x"><sensors>`))
	var syntax *SyntaxError
	if !errors.As(err, &syntax) {
		t.Fatalf("expected SyntaxError, got %T %v", err, err)
	}
	if syntax.Details == "" {
		t.Fatalf("syntax error must carry parser details")
	}
	if diff := cmp.Diff([]State{StateSyntaxError}, log.states()); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineSchemaErrors(t *testing.T) {
	cases := map[string][]byte{
		"dangling sensor reference": buildDocument(defaultSensors, []testReading{
			{ref: "tNorth", value: "20"},
			{ref: "ghost", value: "20"},
		}),
		"value not a number": buildDocument(defaultSensors, []testReading{
			{ref: "tNorth", value: "warm"},
		}),
		"bad timestamp": buildDocument(defaultSensors, []testReading{
			{ref: "tNorth", ts: "yesterday", value: "20"},
		}),
		"wrong root":        []byte(`<estufa id="x"><sensors/><readings/></estufa>`),
		"missing sensors":   []byte(`<greenhouse id="x"><readings/></greenhouse>`),
		"duplicate sensors": buildDocument([]testSensor{{"a", "temperature", "C"}, {"a", "luminosity", "lux"}}, nil),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			log := &transitionLog{}
			p := newTestPipeline(t, WithObserver(log.observe))

			_, err := p.Validate(raw)
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %T %v", err, err)
			}
			if schemaErr.Details == "" {
				t.Fatalf("schema error must carry diagnostics")
			}
			if strings.Contains(schemaErr.Error(), "/readings/reading[") {
				t.Fatalf("schema error leaked a rule locator: %s", schemaErr.Error())
			}
			for _, st := range log.states() {
				if st == StateSchemaValid || st == StateRuleError || st == StateRuleValid {
					t.Fatalf("rule layer ran after schema failure: %v", log.states())
				}
			}
		})
	}
}

func TestPipelineRuleError(t *testing.T) {
	p := newTestPipeline(t)

	raw := buildDocument(defaultSensors, []testReading{
		{ref: "tNorth", value: "25"},
		{ref: "tNorth", value: "61.0"},
		{ref: "lightRoof", value: "-5"},
	})
	_, err := p.Validate(raw)

	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected RuleError, got %T %v", err, err)
	}
	if ruleErr.Kind() != KindBusinessRule {
		t.Fatalf("unexpected kind %q", ruleErr.Kind())
	}
	if ruleErr.Locator != "/greenhouse/readings/reading[2]/value" {
		t.Fatalf("unexpected locator %q", ruleErr.Locator)
	}
	for _, part := range []string{"61.0", "tNorth", "temperature", "[-10.0, 60.0]"} {
		if !strings.Contains(ruleErr.Message, part) {
			t.Fatalf("message %q does not mention %q", ruleErr.Message, part)
		}
	}
	if StateOf(err) != StateRuleError {
		t.Fatalf("unexpected terminal state %s", StateOf(err))
	}
}

func TestPipelineSchemaUnavailable(t *testing.T) {
	schema := NewSchemaValidator([]byte("this is not a schema"))
	log := &transitionLog{}
	p := NewPipeline(schema, NewRuleValidator(DefaultLimits()), WithObserver(log.observe))

	for _, raw := range [][]byte{model.Sample, nil, []byte("<broken")} {
		_, err := p.Validate(raw)
		if !errors.Is(err, ErrSchemaUnavailable) {
			t.Fatalf("expected ErrSchemaUnavailable, got %v", err)
		}
		if KindOf(err) != KindSchemaUnavailable {
			t.Fatalf("unexpected kind %q", KindOf(err))
		}
	}
	for _, st := range log.states() {
		if st != StateRejected {
			t.Fatalf("pipeline progressed without a schema: %v", log.states())
		}
	}
}

func TestPipelineDeterministic(t *testing.T) {
	p := newTestPipeline(t)

	inputs := [][]byte{
		model.Sample,
		buildDocument(defaultSensors, []testReading{{ref: "soilB1", value: "101"}}),
		buildDocument(defaultSensors, []testReading{{ref: "ghost", value: "1"}}),
	}
	for _, raw := range inputs {
		_, first := p.Validate(raw)
		_, second := p.Validate(raw)
		if KindOf(first) != KindOf(second) {
			t.Fatalf("outcome changed between runs: %v vs %v", first, second)
		}
		if first != nil && first.Error() != second.Error() {
			t.Fatalf("message changed between runs: %q vs %q", first.Error(), second.Error())
		}
	}
}

func TestPipelineConcurrentUse(t *testing.T) {
	p := newTestPipeline(t)
	bad := buildDocument(defaultSensors, []testReading{{ref: "airA", value: "100.5"}})

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := p.Validate(model.Sample); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := p.Validate(bad); !IsKind(err, KindBusinessRule) {
				errs <- errors.New("expected business rule error")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent validation: %v", err)
	}
}

func TestStateOf(t *testing.T) {
	cases := []struct {
		err  error
		want State
	}{
		{nil, StateAccepted},
		{ErrEmptyInput, StateRejected},
		{&SyntaxError{}, StateSyntaxError},
		{&SchemaError{}, StateSchemaError},
		{&RuleError{}, StateRuleError},
		{&UnavailableError{}, StateRejected},
		{&PersistenceError{}, StatePersistenceFault},
		{errors.New("other"), StateRejected},
	}
	for _, tc := range cases {
		if got := StateOf(tc.err); got != tc.want {
			t.Errorf("StateOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
		if !StateOf(tc.err).Terminal() {
			t.Errorf("state %s should be terminal", StateOf(tc.err))
		}
	}
}

func TestPipelineDocumentOwnsItsBytes(t *testing.T) {
	p := newTestPipeline(t)

	buf := bytes.Clone(model.Sample)
	doc, err := p.Validate(buf)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for i := range buf {
		buf[i] = 'x'
	}
	if !bytes.Equal(doc.Raw, model.Sample) {
		t.Fatalf("reusing the caller's buffer altered the validated bytes")
	}
}
