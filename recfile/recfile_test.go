package recfile

import (
	"testing"

	"github.com/gostdlib/base/context"
	memfs "github.com/gopherfs/fs/io/mem/simple"
	"github.com/kylelemons/godebug/pretty"

	"github.com/bearlytools/binrec/codec"
	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/mapping"
	"github.com/bearlytools/binrec/structs"
)

func must(f *field.Field, err error) *field.Field {
	if err != nil {
		panic(err)
	}
	return f
}

var header = mapping.MustNew(
	"Header",
	mapping.E("magic", must(codec.String(4))),
	mapping.E("version", must(codec.Int[uint16](codec.BigEndian))),
	mapping.E("note", must(codec.PString(1, codec.LittleEndian))),
)

func TestWriteRead(t *testing.T) {
	ctx := context.Background()

	for _, ct := range []compress.Type{compress.None, compress.Gzip, compress.Snappy, compress.Zstd} {
		fsys := memfs.New()
		path := "/records/header.bin"

		s, err := structs.NewFrom(header, map[string]any{"magic": "BREC", "version": 3, "note": "hello"})
		if err != nil {
			t.Fatalf("TestWriteRead(%s): NewFrom() err == %s", ct, err)
		}
		if err := Write(ctx, s, path, WithFS(fsys), WithCompression(ct)); err != nil {
			t.Fatalf("TestWriteRead(%s): Write() err == %s", ct, err)
		}

		if ct == compress.None {
			b, err := fsys.ReadFile(path)
			if err != nil {
				t.Fatalf("TestWriteRead(%s): ReadFile() err == %s", ct, err)
			}
			want := []byte{'B', 'R', 'E', 'C', 0x00, 0x03, 0x05, 'h', 'e', 'l', 'l', 'o'}
			if diff := pretty.Compare(want, b); diff != "" {
				t.Errorf("TestWriteRead(%s): file content -want/+got:\n%s", ct, diff)
			}
		}

		got, err := Read(ctx, header, path, WithFS(fsys), WithCompression(ct), WithEager(false))
		if err != nil {
			t.Fatalf("TestWriteRead(%s): Read() err == %s", ct, err)
		}
		for name, want := range map[string]any{"magic": "BREC", "version": uint16(3), "note": "hello"} {
			v, err := got.Get(name)
			if err != nil {
				t.Fatalf("TestWriteRead(%s): Get(%s) err == %s", ct, name, err)
			}
			if diff := pretty.Compare(want, v); diff != "" {
				t.Errorf("TestWriteRead(%s): %s -want/+got:\n%s", ct, name, diff)
			}
		}
	}
}

func TestReadErrors(t *testing.T) {
	ctx := context.Background()
	fsys := memfs.New()

	if _, err := Read(ctx, header, "/nope.bin", WithFS(fsys)); err == nil {
		t.Errorf("TestReadErrors(missing file): got err == nil")
	}

	if err := fsys.WriteFile("/short.bin", []byte("BR"), 0600); err != nil {
		t.Fatalf("TestReadErrors: WriteFile() err == %s", err)
	}
	if _, err := Read(ctx, header, "/short.bin", WithFS(fsys)); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestReadErrors(short file): got err == %v, want ErrMissingField", err)
	}

	s := structs.New(header)
	if err := Write(ctx, s, "/empty.bin", WithFS(fsys)); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("TestReadErrors(write unset): got err == %v, want ErrMissingField", err)
	}
}
