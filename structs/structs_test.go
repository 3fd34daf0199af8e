package structs

import (
	"bytes"
	"io"
	"testing"

	"github.com/gostdlib/base/context"
	"github.com/kylelemons/godebug/pretty"

	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/mapping"
)

func colors() field.Option {
	return field.WithValueMap(
		field.P([]byte{0x00}, "red"),
		field.P([]byte{0x01}, "blue"),
	)
}

func pairMap() *mapping.Map {
	return mapping.MustNew(
		"Pair",
		mapping.E("a", field.MustNew(2)),
		mapping.E("b", field.MustNew(1, colors())),
	)
}

// lenPrefixed reads a one byte length followed by that many bytes.
var lenPrefixed = field.ReaderFunc(func(r io.Reader) ([]byte, error) {
	n := make([]byte, 1)
	if _, err := io.ReadFull(r, n); err != nil {
		return nil, err
	}
	raw := make([]byte, 1+int(n[0]))
	raw[0] = n[0]
	if _, err := io.ReadFull(r, raw[1:]); err != nil {
		return nil, err
	}
	return raw, nil
})

func chainedMap() *mapping.Map {
	return mapping.MustNew(
		"Msg",
		mapping.E("kind", field.MustNew(1)),
		mapping.E("body", field.MustNew(field.Dynamic, field.WithReader(lenPrefixed))),
		mapping.E("crc", field.MustNew(2)),
	)
}

func TestLoadAndDump(t *testing.T) {
	ctx := context.Background()
	in := []byte{0x00, 0x01, 0x01}

	s, err := LoadBytes(ctx, pairMap(), in)
	if err != nil {
		t.Fatalf("TestLoadAndDump: LoadBytes() err == %s", err)
	}

	a, err := GetAs[[]byte](s, "a")
	if err != nil {
		t.Fatalf("TestLoadAndDump: Get(a) err == %s", err)
	}
	if diff := pretty.Compare([]byte{0x00, 0x01}, a); diff != "" {
		t.Errorf("TestLoadAndDump(a): -want/+got:\n%s", diff)
	}
	b, err := GetAs[string](s, "b")
	if err != nil {
		t.Fatalf("TestLoadAndDump: Get(b) err == %s", err)
	}
	if b != "blue" {
		t.Errorf("TestLoadAndDump(b): got %q, want %q", b, "blue")
	}

	out, err := s.DumpBytes(ctx)
	if err != nil {
		t.Fatalf("TestLoadAndDump: DumpBytes() err == %s", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("TestLoadAndDump: got dump %#v, want %#v", out, in)
	}
	if s.Mode() != ModeRead {
		t.Errorf("TestLoadAndDump: got Mode() == %s, want rb", s.Mode())
	}
}

func TestDefaultOnTruncatedStream(t *testing.T) {
	ctx := context.Background()
	m := mapping.MustNew(
		"Pair",
		mapping.E("a", field.MustNew(2)),
		mapping.E("b", field.MustNew(1, colors(), field.WithDefault("red"))),
	)

	for _, eager := range []bool{true, false} {
		s, err := LoadBytes(ctx, m, []byte{0x00, 0x01}, WithEager(eager))
		if err != nil {
			t.Fatalf("TestDefaultOnTruncatedStream(eager=%v): LoadBytes() err == %s", eager, err)
		}
		b, err := s.Get("b")
		if err != nil {
			t.Fatalf("TestDefaultOnTruncatedStream(eager=%v): Get(b) err == %s", eager, err)
		}
		if b != "red" {
			t.Errorf("TestDefaultOnTruncatedStream(eager=%v): got %v, want red", eager, b)
		}
		if s.Materialized("b") {
			t.Errorf("TestDefaultOnTruncatedStream(eager=%v): default was cached", eager)
		}
		if _, err := s.DumpBytes(ctx); !errors.Is(err, errors.ErrMissingField) {
			t.Errorf("TestDefaultOnTruncatedStream(eager=%v): DumpBytes() got err == %v, want ErrMissingField", eager, err)
		}
	}
}

func TestEagerLoadMissingField(t *testing.T) {
	ctx := context.Background()

	if _, err := LoadBytes(ctx, pairMap(), []byte{0x00, 0x01}); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestEagerLoadMissingField(eager): got err == %v, want ErrMissingField", err)
	}

	s, err := LoadBytes(ctx, pairMap(), []byte{0x00, 0x01}, WithEager(false))
	if err != nil {
		t.Fatalf("TestEagerLoadMissingField(lazy): got err == %s", err)
	}
	if _, err := s.Get("b"); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestEagerLoadMissingField(lazy): Get(b) got err == %v, want ErrMissingField", err)
	}
	if _, err := s.Get("a"); err != nil {
		t.Errorf("TestEagerLoadMissingField(lazy): Get(a) got err == %s", err)
	}
}

func TestInvalidValue(t *testing.T) {
	ctx := context.Background()

	s, err := LoadBytes(ctx, pairMap(), []byte{0x00, 0x01, 0x07}, WithEager(false))
	if err != nil {
		t.Fatalf("TestInvalidValue: got err == %s", err)
	}
	if _, err := s.Get("b"); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("TestInvalidValue(Get): got err == %v, want ErrInvalidValue", err)
	}
	if err := s.Set("b", "green"); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("TestInvalidValue(Set): got err == %v, want ErrInvalidValue", err)
	}
	if err := s.Set("a", []byte{1}); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("TestInvalidValue(Set short): got err == %v, want ErrInvalidValue", err)
	}
}

func TestLazyMatchesEager(t *testing.T) {
	ctx := context.Background()
	in := []byte{0x09, 0x08, 0x00}

	eager, err := LoadBytes(ctx, pairMap(), in)
	if err != nil {
		t.Fatalf("TestLazyMatchesEager: eager err == %s", err)
	}
	lazy, err := LoadBytes(ctx, pairMap(), in, WithEager(false))
	if err != nil {
		t.Fatalf("TestLazyMatchesEager: lazy err == %s", err)
	}

	if lazy.Materialized("a") || lazy.Materialized("b") {
		t.Errorf("TestLazyMatchesEager: lazy load read fields before access")
	}
	if !eager.Materialized("a") || !eager.Materialized("b") {
		t.Errorf("TestLazyMatchesEager: eager load did not read every field")
	}

	// Read in reverse order to show access order does not matter.
	for _, name := range []string{"b", "a"} {
		want, err := eager.Get(name)
		if err != nil {
			t.Fatalf("TestLazyMatchesEager(%s): eager Get() err == %s", name, err)
		}
		got, err := lazy.Get(name)
		if err != nil {
			t.Fatalf("TestLazyMatchesEager(%s): lazy Get() err == %s", name, err)
		}
		if diff := pretty.Compare(want, got); diff != "" {
			t.Errorf("TestLazyMatchesEager(%s): -want/+got:\n%s", name, diff)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	s, err := NewFrom(pairMap(), map[string]any{"a": []byte{0xAB, 0xCD}, "b": "red"})
	if err != nil {
		t.Fatalf("TestRoundTrip: NewFrom() err == %s", err)
	}
	if s.Mode() != ModeNone {
		t.Errorf("TestRoundTrip: got Mode() == %s, want none", s.Mode())
	}

	b, err := s.DumpBytes(ctx)
	if err != nil {
		t.Fatalf("TestRoundTrip: DumpBytes() err == %s", err)
	}
	if diff := pretty.Compare([]byte{0xAB, 0xCD, 0x00}, b); diff != "" {
		t.Errorf("TestRoundTrip(dump): -want/+got:\n%s", diff)
	}

	got, err := LoadBytes(ctx, pairMap(), b)
	if err != nil {
		t.Fatalf("TestRoundTrip: LoadBytes() err == %s", err)
	}
	for _, name := range []string{"a", "b"} {
		want, _ := s.Get(name)
		v, err := got.Get(name)
		if err != nil {
			t.Fatalf("TestRoundTrip(%s): Get() err == %s", name, err)
		}
		if diff := pretty.Compare(want, v); diff != "" {
			t.Errorf("TestRoundTrip(%s): -want/+got:\n%s", name, diff)
		}
	}

	if _, err := NewFrom(pairMap(), map[string]any{"zzz": 1}); err == nil {
		t.Errorf("TestRoundTrip: NewFrom() with unknown field got err == nil")
	}
}

func TestChainedDynamic(t *testing.T) {
	ctx := context.Background()
	in := []byte{0x07, 0x03, 'a', 'b', 'c', 0xAA, 0xBB}

	s, err := LoadBytes(ctx, chainedMap(), in, WithEager(false))
	if err != nil {
		t.Fatalf("TestChainedDynamic: LoadBytes() err == %s", err)
	}

	crc, err := s.Get("crc")
	if err != nil {
		t.Fatalf("TestChainedDynamic: Get(crc) err == %s", err)
	}
	if diff := pretty.Compare([]byte{0xAA, 0xBB}, crc); diff != "" {
		t.Errorf("TestChainedDynamic(crc): -want/+got:\n%s", diff)
	}
	if s.Materialized("body") {
		t.Errorf("TestChainedDynamic: resolving the crc offset cached body")
	}
	off, err := s.Offset("crc")
	if err != nil {
		t.Fatalf("TestChainedDynamic: Offset(crc) err == %s", err)
	}
	if off != 5 {
		t.Errorf("TestChainedDynamic: got Offset(crc) == %d, want 5", off)
	}

	body, err := s.Get("body")
	if err != nil {
		t.Fatalf("TestChainedDynamic: Get(body) err == %s", err)
	}
	if diff := pretty.Compare([]byte{0x03, 'a', 'b', 'c'}, body); diff != "" {
		t.Errorf("TestChainedDynamic(body): -want/+got:\n%s", diff)
	}
	if _, err := s.Get("kind"); err != nil {
		t.Fatalf("TestChainedDynamic: Get(kind) err == %s", err)
	}

	out, err := s.DumpBytes(ctx)
	if err != nil {
		t.Fatalf("TestChainedDynamic: DumpBytes() err == %s", err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("TestChainedDynamic: got dump %#v, want %#v", out, in)
	}
}

func TestChainedDynamicTruncated(t *testing.T) {
	ctx := context.Background()

	// The body claims 9 bytes but the stream ends first.
	s, err := LoadBytes(ctx, chainedMap(), []byte{0x07, 0x09, 'a'}, WithEager(false))
	if err != nil {
		t.Fatalf("TestChainedDynamicTruncated: LoadBytes() err == %s", err)
	}
	if _, err := s.Get("crc"); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestChainedDynamicTruncated: Get(crc) got err == %v, want ErrMissingField", err)
	}
	if _, err := s.Get("body"); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestChainedDynamicTruncated: Get(body) got err == %v, want ErrMissingField", err)
	}
}

func TestDumpGaps(t *testing.T) {
	ctx := context.Background()
	m := mapping.MustNew(
		"Gappy",
		mapping.E("a", field.MustNew(1)),
		mapping.E("b", field.MustNew(1, field.WithOffset(4))),
	)

	s, err := NewFrom(m, map[string]any{"a": []byte{0x01}, "b": []byte{0x02}})
	if err != nil {
		t.Fatalf("TestDumpGaps: NewFrom() err == %s", err)
	}

	buf := &bytes.Buffer{}
	if err := s.Dump(ctx, buf); err != nil {
		t.Fatalf("TestDumpGaps: Dump() err == %s", err)
	}
	if diff := pretty.Compare([]byte{0x01, 0x00, 0x00, 0x00, 0x02}, buf.Bytes()); diff != "" {
		t.Errorf("TestDumpGaps: -want/+got:\n%s", diff)
	}
}

func TestDumpOverlap(t *testing.T) {
	ctx := context.Background()
	m := mapping.MustNew(
		"Overlay",
		mapping.E("a", field.MustNew(4)),
		mapping.E("b", field.MustNew(2, field.WithOffset(1))),
	)

	s, err := NewFrom(m, map[string]any{"a": []byte{1, 2, 3, 4}, "b": []byte{9, 9}})
	if err != nil {
		t.Fatalf("TestDumpOverlap: NewFrom() err == %s", err)
	}

	if err := s.Dump(ctx, &bytes.Buffer{}); !errors.Is(err, errors.ErrSchema) {
		t.Errorf("TestDumpOverlap(bytes.Buffer): got err == %v, want ErrSchema", err)
	}

	b, err := s.DumpBytes(ctx)
	if err != nil {
		t.Fatalf("TestDumpOverlap: DumpBytes() err == %s", err)
	}
	if diff := pretty.Compare([]byte{1, 9, 9, 4}, b); diff != "" {
		t.Errorf("TestDumpOverlap: -want/+got:\n%s", diff)
	}
}

func TestDumpBytesOverlapAfterDynamic(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		desc string
		m    *mapping.Map
		in   []byte
	}{
		{
			desc: "explicit offset after chained field",
			m: mapping.MustNew(
				"Trailer",
				mapping.E("body", field.MustNew(field.Dynamic, field.WithReader(lenPrefixed))),
				mapping.E("crc", field.MustNew(1)),
				mapping.E("tag", field.MustNew(1, field.WithOffset(0))),
			),
			in: []byte{0x01, 0xAA, 0xBB},
		},
		{
			desc: "explicit offset inside dynamic field",
			m: mapping.MustNew(
				"Inner",
				mapping.E("a", field.MustNew(2)),
				mapping.E("body", field.MustNew(field.Dynamic, field.WithReader(lenPrefixed), field.WithOffset(2))),
				mapping.E("last", field.MustNew(1, field.WithOffset(3))),
			),
			in: []byte{0x10, 0x20, 0x01, 0xAA},
		},
	}

	for _, test := range tests {
		s, err := LoadBytes(ctx, test.m, test.in)
		if err != nil {
			t.Errorf("TestDumpBytesOverlapAfterDynamic(%s): LoadBytes() err == %s", test.desc, err)
			continue
		}
		out, err := s.DumpBytes(ctx)
		if err != nil {
			t.Errorf("TestDumpBytesOverlapAfterDynamic(%s): DumpBytes() err == %s", test.desc, err)
			continue
		}
		if diff := pretty.Compare(test.in, out); diff != "" {
			t.Errorf("TestDumpBytesOverlapAfterDynamic(%s): -want/+got:\n%s", test.desc, diff)
		}
	}
}

func TestCompression(t *testing.T) {
	ctx := context.Background()

	for _, ct := range []compress.Type{compress.Gzip, compress.Snappy, compress.Zstd} {
		s, err := NewFrom(pairMap(), map[string]any{"a": []byte{0x10, 0x20}, "b": "blue"})
		if err != nil {
			t.Fatalf("TestCompression(%s): NewFrom() err == %s", ct, err)
		}
		b, err := s.DumpBytes(ctx, WithDumpCompression(ct))
		if err != nil {
			t.Fatalf("TestCompression(%s): DumpBytes() err == %s", ct, err)
		}

		got, err := Load(ctx, pairMap(), bytes.NewReader(b), WithCompression(ct))
		if err != nil {
			t.Fatalf("TestCompression(%s): Load() err == %s", ct, err)
		}
		v, err := GetAs[string](got, "b")
		if err != nil {
			t.Fatalf("TestCompression(%s): Get(b) err == %s", ct, err)
		}
		if v != "blue" {
			t.Errorf("TestCompression(%s): got b == %q, want blue", ct, v)
		}
		got.Release()
	}
}

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	s, err := LoadBytes(ctx, pairMap(), []byte{0x05, 0x06, 0x00})
	if err != nil {
		t.Fatalf("TestAccessors: LoadBytes() err == %s", err)
	}

	if _, err := s.Get("nope"); err == nil {
		t.Errorf("TestAccessors: Get(nope) got err == nil")
	}
	if _, err := GetAs[int](s, "b"); !errors.Is(err, errors.ErrInvalidValue) {
		t.Errorf("TestAccessors: GetAs[int](b) got err == %v, want ErrInvalidValue", err)
	}

	raw, ok := s.Raw("a")
	if !ok {
		t.Fatalf("TestAccessors: Raw(a) not found")
	}
	raw[0] = 0xFF
	again, _ := s.Raw("a")
	if again[0] != 0x05 {
		t.Errorf("TestAccessors: Raw() did not return a copy")
	}
	if s.String() != "<Pair: Binary Data>" {
		t.Errorf("TestAccessors: got String() == %q", s.String())
	}

	s.Release()
	if s.Materialized("a") || s.Mode() != ModeNone {
		t.Errorf("TestAccessors: Release() kept state")
	}
	if _, err := s.Get("a"); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestAccessors: Get() after Release() got err == %v, want ErrMissingField", err)
	}
}

func TestLoadNilStream(t *testing.T) {
	if _, err := Load(context.Background(), pairMap(), nil); err == nil {
		t.Errorf("TestLoadNilStream: got err == nil")
	}
}
