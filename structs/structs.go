// Package structs holds Struct, a record value laid out by a mapping.Map. A Struct either starts
// empty and has its fields Set(), or is bound to a stream with Load() and decodes each field the
// first time it is accessed. Raw bytes are kept next to decoded values so a record dumps back to
// exactly the bytes it was loaded from.
package structs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gostdlib/base/context"
	"go.uber.org/zap"

	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/internal/log"
	"github.com/bearlytools/binrec/mapping"
	"github.com/bearlytools/binrec/telemetry"
)

// Mode is how a Struct is bound to a stream.
type Mode uint8

const (
	// ModeNone is a Struct that is not bound to a stream.
	ModeNone Mode = 0
	// ModeRead is a Struct that reads its fields from a stream.
	ModeRead Mode = 1
)

func (m Mode) String() string {
	if m == ModeRead {
		return "rb"
	}
	return "none"
}

// options are the settings shared by New(), Load() and LoadBytes().
type options struct {
	eager       bool
	compression compress.Type
	obs         *telemetry.Observer
}

// Option is an optional argument to New(), Load() and LoadBytes().
type Option func(o *options)

// WithEager sets if Load() reads every field immediately (the default) or when first accessed.
func WithEager(eager bool) Option {
	return func(o *options) {
		o.eager = eager
	}
}

// WithCompression says the data given to Load() or LoadBytes() was compressed with DumpBytes()
// and WithDumpCompression().
func WithCompression(t compress.Type) Option {
	return func(o *options) {
		o.compression = t
	}
}

// WithObserver records traces and metrics to o.
func WithObserver(o *telemetry.Observer) Option {
	return func(opts *options) {
		opts.obs = o
	}
}

// Struct is a record value. It is not safe for concurrent use.
type Struct struct {
	mapping *mapping.Map

	r    io.ReadSeeker
	mode Mode
	// pooled is set when r came from the readers pool and must be returned on Release().
	pooled *bytes.Reader

	entries []entry
	// streamEnds caches where each field ends in the bound stream, -1 when not known yet.
	// It is only needed for Maps with dynamic fields.
	streamEnds []int64

	obs *telemetry.Observer
}

// New creates an empty Struct for m. Fields are populated with Set().
func New(m *mapping.Map, opts ...Option) *Struct {
	o := options{eager: true}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Struct{
		mapping:    m,
		entries:    make([]entry, m.Len()),
		streamEnds: make([]int64, m.Len()),
		obs:        o.obs,
	}
	for i := range s.streamEnds {
		s.streamEnds[i] = -1
	}
	return s
}

// NewFrom creates a Struct for m and sets every field named in values.
func NewFrom(m *mapping.Map, values map[string]any, opts ...Option) (*Struct, error) {
	s := New(m, opts...)
	for name := range values {
		if _, ok := m.ByName(name); !ok {
			return nil, noField(m, name)
		}
	}
	// Set in declaration order so the first failing field is always the same one.
	for _, f := range m.All() {
		v, ok := values[f.Name()]
		if !ok {
			continue
		}
		if err := f.Set(s, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load binds a new Struct to r. By default every field is read immediately, so stream errors are
// returned here. With WithEager(false), fields are read on first access. The Struct does not own r
// and never closes it; r must not be used by anything else while the Struct reads from it.
func Load(ctx context.Context, m *mapping.Map, r io.ReadSeeker, opts ...Option) (*Struct, error) {
	if r == nil {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("Load(): stream cannot be nil"))
	}

	o := options{eager: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.compression != compress.None {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Stream(ctx, "read", err)
		}
		return loadBytes(ctx, m, b, o)
	}
	return load(ctx, m, r, nil, o)
}

// LoadBytes is Load() for a byte slice. b must not be modified while the Struct uses it.
func LoadBytes(ctx context.Context, m *mapping.Map, b []byte, opts ...Option) (*Struct, error) {
	o := options{eager: true}
	for _, opt := range opts {
		opt(&o)
	}
	return loadBytes(ctx, m, b, o)
}

func loadBytes(ctx context.Context, m *mapping.Map, b []byte, o options) (*Struct, error) {
	if o.compression != compress.None {
		var err error
		b, err = compress.Decompress(o.compression, b)
		if err != nil {
			return nil, errors.E(ctx, errors.CatUser, errors.TypeParameter, fmt.Errorf("could not decompress %s record: %w", o.compression, err))
		}
	}

	r := readers.Get(ctx)
	r.Reset(b)
	s, err := load(ctx, m, r, r, o)
	if err != nil {
		r.Reset(nil)
		readers.Put(ctx, r)
		return nil, err
	}
	return s, nil
}

func load(ctx context.Context, m *mapping.Map, r io.ReadSeeker, pooled *bytes.Reader, o options) (*Struct, error) {
	ctx, done := o.obs.StartLoad(ctx, m.Name, o.eager)

	s := New(m)
	s.obs = o.obs
	s.r = r
	s.pooled = pooled
	s.mode = ModeRead

	if o.eager {
		for _, f := range m.All() {
			if _, err := s.get(ctx, f); err != nil {
				done(0, err)
				return nil, err
			}
		}
	}
	done(0, nil)

	log.Logger().Debug("record loaded", zap.String("record", m.Name), zap.Bool("eager", o.eager))
	return s, nil
}

// Mapping returns the schema of the Struct.
func (s *Struct) Mapping() *mapping.Map {
	return s.mapping
}

// Mode returns how the Struct is bound.
func (s *Struct) Mode() Mode {
	return s.mode
}

// Get returns the decoded value of the named field, reading it from the stream on first access.
func (s *Struct) Get(name string) (any, error) {
	f, ok := s.mapping.ByName(name)
	if !ok {
		return nil, noField(s.mapping, name)
	}
	return s.get(context.Background(), f)
}

// GetAs is Get() with the value converted to T.
func GetAs[T any](s *Struct, name string) (T, error) {
	var zero T

	v, err := s.Get(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.InvalidValue(context.Background(), name, "value is a %T, not a %T", v, zero)
	}
	return t, nil
}

func (s *Struct) get(ctx context.Context, f *field.Field) (any, error) {
	if s.entries[f.Index()].cached {
		return s.entries[f.Index()].value, nil
	}

	v, err := f.Get(s)
	if s.r != nil {
		s.obs.FieldRead(ctx, s.mapping.Name, f.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	if s.entries[f.Index()].cached {
		log.Logger().Debug(
			"field materialized",
			zap.String("record", s.mapping.Name),
			zap.String("field", f.Name()),
			zap.Int("size", len(s.entries[f.Index()].raw)),
		)
	}
	return v, nil
}

// Set encodes v into the named field. Nothing is written to any stream until Dump().
func (s *Struct) Set(name string, v any) error {
	f, ok := s.mapping.ByName(name)
	if !ok {
		return noField(s.mapping, name)
	}
	return f.Set(s, v)
}

// Raw returns a copy of the raw bytes cached for the named field. ok is false if the field has
// not been read or set.
func (s *Struct) Raw(name string) (raw []byte, ok bool) {
	i := s.mapping.Index(name)
	if i < 0 || !s.entries[i].cached {
		return nil, false
	}
	return bytes.Clone(s.entries[i].raw), true
}

// Materialized reports if the named field has been read or set.
func (s *Struct) Materialized(name string) bool {
	i := s.mapping.Index(name)
	return i >= 0 && s.entries[i].cached
}

// Offset returns the offset of the named field in the bound stream. For fields that follow a
// dynamic field this can require reading earlier fields.
func (s *Struct) Offset(name string) (int64, error) {
	f, ok := s.mapping.ByName(name)
	if !ok {
		return 0, noField(s.mapping, name)
	}
	return s.OffsetOf(f)
}

// Release drops the stream binding and every cached value. The stream is not closed.
func (s *Struct) Release() {
	if s.pooled != nil {
		s.pooled.Reset(nil)
		readers.Put(context.Background(), s.pooled)
		s.pooled = nil
	}
	s.r = nil
	s.mode = ModeNone
	for i := range s.entries {
		s.entries[i] = entry{}
		s.streamEnds[i] = -1
	}
}

func (s *Struct) String() string {
	return fmt.Sprintf("<%s: Binary Data>", s.mapping.Name)
}

func noField(m *mapping.Map, name string) error {
	return errors.E(context.Background(), errors.CatUser, errors.TypeParameter, fmt.Errorf("record %q has no field %q", m.Name, name), errors.WithCallNum(3))
}
