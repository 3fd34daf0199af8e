package structs

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/gostdlib/base/context"

	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/mapping"
)

const benchFields = 64

func benchMap() (*mapping.Map, []byte) {
	entries := make([]mapping.Entry, 0, benchFields)
	for i := 0; i < benchFields; i++ {
		entries = append(entries, mapping.E(fmt.Sprintf("f%d", i), field.MustNew(4)))
	}
	return mapping.MustNew("Bench", entries...), bytes.Repeat([]byte{1, 2, 3, 4}, benchFields)
}

func BenchmarkLoadEager(b *testing.B) {
	ctx := context.Background()
	m, in := benchMap()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s, err := LoadBytes(ctx, m, in)
		if err != nil {
			b.Fatal(err)
		}
		s.Release()
	}
}

func BenchmarkLoadLazyOneField(b *testing.B) {
	ctx := context.Background()
	m, in := benchMap()
	last := m.Field(benchFields - 1).Name()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s, err := LoadBytes(ctx, m, in, WithEager(false))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := s.Get(last); err != nil {
			b.Fatal(err)
		}
		s.Release()
	}
}

func BenchmarkLoadLazyChained(b *testing.B) {
	ctx := context.Background()
	m := chainedMap()
	in := append([]byte{0x07, 0x20}, bytes.Repeat([]byte{'x'}, 0x20)...)
	in = append(in, 0xAA, 0xBB)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s, err := LoadBytes(ctx, m, in, WithEager(false))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := s.Get("crc"); err != nil {
			b.Fatal(err)
		}
		s.Release()
	}
}

func BenchmarkDumpBytes(b *testing.B) {
	ctx := context.Background()
	m, in := benchMap()
	s, err := LoadBytes(ctx, m, in)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := s.DumpBytes(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
