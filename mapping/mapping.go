// Package mapping holds the schema of a record: the ordered list of Fields that describe its binary
// layout. A Map is assembled once per record type with a Builder, which binds every Field in
// declaration order and accumulates offsets, and is then shared by every instance of the record.
package mapping

import (
	"fmt"
	"iter"
	"strings"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
)

// Map describes a record layout. It is immutable once built.
type Map struct {
	// Name of the record type.
	Name string

	fields  []*field.Field
	byName  map[string]int
	size    int64
	dynamic bool
}

// Len returns the number of fields.
func (m *Map) Len() int {
	return len(m.fields)
}

// Field returns the field at index i in declaration order.
func (m *Map) Field(i int) *field.Field {
	return m.fields[i]
}

// Fields returns the fields in declaration order. The slice is a copy.
func (m *Map) Fields() []*field.Field {
	out := make([]*field.Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// All iterates over the fields in declaration order.
func (m *Map) All() iter.Seq2[int, *field.Field] {
	return func(yield func(int, *field.Field) bool) {
		for i, f := range m.fields {
			if !yield(i, f) {
				return
			}
		}
	}
}

// Names returns the field names in declaration order.
func (m *Map) Names() []string {
	out := make([]string, 0, len(m.fields))
	for _, f := range m.fields {
		out = append(out, f.Name())
	}
	return out
}

// ByName retrieves a field by name.
func (m *Map) ByName(name string) (*field.Field, bool) {
	i, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.fields[i], true
}

// Index returns the position of the named field or -1.
func (m *Map) Index(name string) int {
	i, ok := m.byName[name]
	if !ok {
		return -1
	}
	return i
}

// Size is the largest extent (offset + size) of any field. If Dynamic() is true, this only counts
// the fields with a static layout and is the smallest size a record can have.
func (m *Map) Size() int64 {
	return m.size
}

// Dynamic reports if the Map has a field that determines its own size when read. Fields after
// such a field have offsets that are resolved per record.
func (m *Map) Dynamic() bool {
	return m.dynamic
}

func (m *Map) String() string {
	sb := strings.Builder{}
	sb.WriteString(m.Name)
	sb.WriteString("{")
	for i, f := range m.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		size := "dynamic"
		if f.Size() != field.Dynamic {
			size = fmt.Sprintf("%d", f.Size())
		}
		fmt.Fprintf(&sb, "%s@%d:%s", f.Name(), f.Offset(), size)
	}
	sb.WriteString("}")
	return sb.String()
}

// Entry is a named field passed to New().
type Entry struct {
	Name  string
	Field *field.Field
}

// E is a shorthand for creating an Entry.
func E(name string, f *field.Field) Entry {
	return Entry{Name: name, Field: f}
}

// New builds a Map from entries in the order given.
func New(name string, entries ...Entry) (*Map, error) {
	b := NewBuilder(name)
	for _, e := range entries {
		b.Add(e.Name, e.Field)
	}
	return b.Build()
}

// MustNew is like New() but panics on error. Use it for package level record declarations.
func MustNew(name string, entries ...Entry) *Map {
	m, err := New(name, entries...)
	if err != nil {
		panic(err)
	}
	return m
}

// Builder assembles a Map. Fields are bound as they are added, so offsets are fixed in the order
// of the Add() calls. Builder implements field.Registry.
type Builder struct {
	m     *Map
	err   error
	built bool
}

// NewBuilder creates a Builder for a record type called name.
func NewBuilder(name string) *Builder {
	return &Builder{
		m: &Map{Name: name, byName: map[string]int{}},
	}
}

// Add binds f under name. Errors are reported by Build().
func (b *Builder) Add(name string, f *field.Field) *Builder {
	if b.err != nil {
		return b
	}
	if b.built {
		b.err = errors.Schema(context.Background(), "record %q: Add(%q) called after Build()", b.m.Name, name)
		return b
	}
	if f == nil {
		b.err = errors.Schema(context.Background(), "record %q: field %q is nil", b.m.Name, name)
		return b
	}
	if err := f.Bind(name, b); err != nil {
		b.err = err
	}
	return b
}

// Build returns the Map. If any Add() failed, the first error is returned and the record type
// cannot be used.
func (b *Builder) Build() (*Map, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.built = true
	return b.m, nil
}

// Register implements field.Registry.Register().
func (b *Builder) Register(name string, f *field.Field) (int, error) {
	if _, ok := b.m.byName[name]; ok {
		return 0, errors.Schema(context.Background(), "record %q has duplicate field name %q", b.m.Name, name)
	}
	b.m.fields = append(b.m.fields, f)
	i := len(b.m.fields) - 1
	b.m.byName[name] = i
	return i, nil
}

// RunningSize implements field.Registry.RunningSize().
func (b *Builder) RunningSize() int64 {
	return b.m.size
}

// Advance implements field.Registry.Advance().
func (b *Builder) Advance(end int64) {
	if end > b.m.size {
		b.m.size = end
	}
}

// MarkDynamic implements field.Registry.MarkDynamic().
func (b *Builder) MarkDynamic() {
	b.m.dynamic = true
}

// Dynamic implements field.Registry.Dynamic().
func (b *Builder) Dynamic() bool {
	return b.m.dynamic
}
