// Package model holds the reference document grammar for greenhouse readings.
package model

import _ "embed"

// Schema is the XSD every submitted document must conform to.
//
//go:embed greenhouse.xsd
var Schema []byte

// Sample is a document that passes both validation layers.
//
//go:embed sample.xml
var Sample []byte
