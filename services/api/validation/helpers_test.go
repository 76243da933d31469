package validation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/02loveslollipop/estufa-iot/services/api/model"
)

type testSensor struct {
	id, typ, unit string
}

type testReading struct {
	ref, ts, value string
}

func buildDocument(sensors []testSensor, readings []testReading) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<greenhouse id="testHouse">` + "\n  <sensors>\n")
	for _, s := range sensors {
		fmt.Fprintf(&b, "    <sensor id=%q type=%q unit=%q><location>bench</location></sensor>\n", s.id, s.typ, s.unit)
	}
	b.WriteString("  </sensors>\n  <readings>\n")
	for _, r := range readings {
		ts := r.ts
		if ts == "" {
			ts = "2025-10-30T10:30:00-03:00"
		}
		fmt.Fprintf(&b, "    <reading sensorRef=%q><timestamp>%s</timestamp><value>%s</value></reading>\n", r.ref, ts, r.value)
	}
	b.WriteString("  </readings>\n</greenhouse>\n")
	return []byte(b.String())
}

var defaultSensors = []testSensor{
	{id: "tNorth", typ: "temperature", unit: "C"},
	{id: "airA", typ: "airHumidity", unit: "%"},
	{id: "soilB1", typ: "soilHumidity", unit: "%"},
	{id: "lightRoof", typ: "luminosity", unit: "lux"},
	{id: "co2", typ: "carbonDioxide", unit: "ppm"},
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	schema := NewSchemaValidator(model.Schema)
	if err := schema.Available(); err != nil {
		t.Fatalf("reference schema failed to load: %v", err)
	}
	t.Cleanup(schema.Close)
	return NewPipeline(schema, NewRuleValidator(DefaultLimits()), opts...)
}
