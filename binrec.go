// Package binrec describes fixed layout binary records as ordered lists of named fields and reads
// and writes them against byte streams.
//
// A record type is a mapping.Map built from field.Field descriptors, usually with the constructors
// in package codec or from a layout file with package idl. Instances are structs.Struct values:
//
//	m := mapping.MustNew(
//		"Pixel",
//		mapping.E("a", field.MustNew(2)),
//		mapping.E("b", field.MustNew(1, field.WithValueMap(field.P([]byte{0}, "red"), field.P([]byte{1}, "blue")))),
//	)
//	s, err := structs.LoadBytes(ctx, m, []byte{0x00, 0x01, 0x01})
//	...
//	b, err := s.Get("b") // "blue"
//
// Fields are read from the stream the first time they are accessed and cached with their raw
// bytes, so Dump() writes a loaded record back byte for byte.
package binrec

import (
	"go.uber.org/zap"

	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/internal/log"
	"github.com/bearlytools/binrec/mapping"
	"github.com/bearlytools/binrec/structs"
)

// Dynamic is the size of a field that determines its own length when read.
const Dynamic = field.Dynamic

type (
	// Field describes one field of a record.
	Field = field.Field
	// Map is the layout of a record type.
	Map = mapping.Map
	// Struct is a record instance.
	Struct = structs.Struct
)

// SetLogger sets the logger used by every binrec package. Nothing is logged by default. Passing
// nil turns logging off again.
func SetLogger(l *zap.Logger) {
	log.SetLogger(l)
}
