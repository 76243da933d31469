// Package xmldoc parses greenhouse documents with libxml2 and extracts the
// sensor and reading structures through XPath.
package xmldoc

import (
	"errors"
	"fmt"

	"github.com/lestrrat-go/libxml2"
	"github.com/lestrrat-go/libxml2/types"
	"github.com/lestrrat-go/libxml2/xpath"
)

const (
	sensorsXPath  = "/*/sensors/sensor"
	readingsXPath = "/*/readings/reading"
)

// Tree is a parsed document. Callers must Free it when done.
type Tree struct {
	doc types.Document
	raw []byte
}

// Sensor is one declared sensor.
type Sensor struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Unit     string `json:"unit"`
	Location string `json:"location"`
}

// Reading is one reading in document order. ValueText is the raw text of the
// value element; numeric interpretation belongs to the caller.
type Reading struct {
	Position  int    `json:"position"`
	SensorRef string `json:"sensorRef"`
	Timestamp string `json:"timestamp"`
	ValueText string `json:"value"`
}

// Content is the flattened view of a document used by rule validation and
// queries.
type Content struct {
	Root     string
	Sensors  []Sensor
	Readings []Reading
}

// Descriptor describes a sensor inside a Catalog.
type Descriptor struct {
	Type     string `json:"type"`
	Unit     string `json:"unit"`
	Location string `json:"location"`
}

// Catalog maps sensor identifiers to their descriptors for a single document.
type Catalog map[string]Descriptor

// Parse reads raw bytes into a libxml2 document. Malformed markup is
// reported as an error carrying the parser diagnostic.
func Parse(raw []byte) (*Tree, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty document")
	}
	doc, err := libxml2.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Tree{doc: doc, raw: raw}, nil
}

// Document exposes the underlying libxml2 document (for schema validation).
func (t *Tree) Document() types.Document {
	return t.doc
}

// Raw returns the bytes the tree was parsed from.
func (t *Tree) Raw() []byte {
	return t.raw
}

// Free releases the C-side memory held by the tree.
func (t *Tree) Free() {
	if t == nil || t.doc == nil {
		return
	}
	t.doc.Free()
	t.doc = nil
}

// Extract walks the sensor and reading structures of the document.
func (t *Tree) Extract() (*Content, error) {
	if t == nil || t.doc == nil {
		return nil, errors.New("xmldoc: tree is not loaded")
	}

	root, err := t.doc.DocumentElement()
	if err != nil {
		return nil, fmt.Errorf("xmldoc: document element: %w", err)
	}
	content := &Content{Root: root.NodeName()}

	sensorNodes, err := findNodes(t.doc, sensorsXPath)
	if err != nil {
		return nil, err
	}
	content.Sensors = make([]Sensor, 0, len(sensorNodes))
	for _, n := range sensorNodes {
		content.Sensors = append(content.Sensors, Sensor{
			ID:       stringAt(n, "@id"),
			Type:     stringAt(n, "@type"),
			Unit:     stringAt(n, "@unit"),
			Location: stringAt(n, "location"),
		})
	}

	readingNodes, err := findNodes(t.doc, readingsXPath)
	if err != nil {
		return nil, err
	}
	content.Readings = make([]Reading, 0, len(readingNodes))
	for i, n := range readingNodes {
		content.Readings = append(content.Readings, Reading{
			Position:  i + 1,
			SensorRef: stringAt(n, "@sensorRef"),
			Timestamp: stringAt(n, "timestamp"),
			ValueText: stringAt(n, "value"),
		})
	}

	return content, nil
}

// Catalog builds the sensor id -> descriptor mapping. Later declarations of
// a duplicated id win; schema validation rules duplicates out beforehand.
func (c *Content) Catalog() Catalog {
	catalog := make(Catalog, len(c.Sensors))
	for _, s := range c.Sensors {
		catalog[s.ID] = Descriptor{Type: s.Type, Unit: s.Unit, Location: s.Location}
	}
	return catalog
}

// ParseContent is Parse followed by Extract, freeing the tree afterwards.
func ParseContent(raw []byte) (*Content, error) {
	tree, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	defer tree.Free()
	return tree.Extract()
}

func findNodes(doc types.Document, expr string) (types.NodeList, error) {
	res, err := doc.Find(expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %s: %w", expr, err)
	}
	defer res.Free()
	return res.NodeList(), nil
}

// stringAt returns the text of the first node matched by a node-set
// expression relative to n, or "" when nothing matches.
func stringAt(n types.Node, expr string) string {
	return xpath.String(n.Find(expr))
}
