// Package idl parses layout files, a small text language for declaring record layouts, into
// mapping.Map schemas.
//
//	// A comment.
//	record Pixel {
//		a  bytes   2
//		b  uint8   map=0:red,1:blue  default=red
//		c  uint16be @6 label=Color_Code
//		d  pstring8
//	}
//
//	record Image {
//		width  uint16
//		pixel  Pixel
//	}
//
// A field line is the field name, a type, a size for sized types ("bytes" and "string") and then
// options. The types are the names registered with package codec and any record declared earlier
// in the file. Options are:
//
//	@N           the field starts at offset N
//	map=k:v,...  raw value k (a literal of the field type) decodes to the string v
//	default=v    the value returned when the stream ends before the field
//	label=Text   the human readable name, "_" is replaced with a space
package idl

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"unicode"

	"github.com/gostdlib/base/context"
	"github.com/johnsiilver/halfpike"
	pkgerrors "github.com/pkg/errors"

	"github.com/bearlytools/binrec/codec"
	"github.com/bearlytools/binrec/errors"
	"github.com/bearlytools/binrec/field"
	"github.com/bearlytools/binrec/mapping"
)

// File holds the records declared in a layout file.
type File struct {
	records map[string]*mapping.Map
	order   []string
}

// Parse parses the content of a layout file.
func Parse(ctx context.Context, content string) (*File, error) {
	f := &File{records: map[string]*mapping.Map{}}

	if err := halfpike.Parse(ctx, content, f); err != nil {
		err = pkgerrors.Wrap(err, "invalid layout")
		if !errors.Is(err, errors.ErrSchema) {
			err = fmt.Errorf("%w: %w", errors.ErrSchema, err)
		}
		return nil, errors.E(ctx, errors.CatUser, errors.TypeSchema, err)
	}
	return f, nil
}

// ParseFile reads and parses the layout file at path in fsys.
func ParseFile(ctx context.Context, fsys fs.ReadFileFS, path string) (*File, error) {
	b, err := fsys.ReadFile(path)
	if err != nil {
		return nil, errors.E(ctx, errors.CatUser, errors.TypeFS, pkgerrors.Wrapf(err, "could not read layout file %q", path))
	}
	f, err := Parse(ctx, string(b))
	if err != nil {
		return nil, pkgerrors.WithMessagef(err, "layout file %q", path)
	}
	return f, nil
}

// Record returns the named record.
func (f *File) Record(name string) (*mapping.Map, bool) {
	m, ok := f.records[name]
	return m, ok
}

// Names returns the record names in the order they were declared.
func (f *File) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Validate implements halfpike.Validator.
func (f *File) Validate() error {
	if len(f.order) == 0 {
		return fmt.Errorf("layout does not declare any records")
	}
	return nil
}

// Start implements halfpike.Start.
func (f *File) Start(ctx context.Context, p *halfpike.Parser) halfpike.ParseFn {
	return f.findRecord
}

// findRecord finds the next "record Name {" line.
func (f *File) findRecord(ctx context.Context, p *halfpike.Parser) halfpike.ParseFn {
	line, words := nextLine(p)
	if p.EOF(line) {
		return nil
	}

	if len(words) != 3 || words[2] != "{" {
		return p.Errorf("[Line %d] error: got %q, want: 'record {{Name}} {'", line.LineNum, strings.TrimSpace(line.Raw))
	}
	if err := caseSensitiveCheck("record", words[0]); err != nil {
		return p.Errorf("[Line %d] error: %s", line.LineNum, err)
	}
	name := words[1]
	if err := validateIdent(name); err != nil {
		return p.Errorf("[Line %d] error: record name: %s", line.LineNum, err)
	}
	if _, ok := f.records[name]; ok {
		return p.Errorf("[Line %d] error: record %q is declared twice", line.LineNum, name)
	}
	if _, ok := codec.Lookup(name); ok {
		return p.Errorf("[Line %d] error: record %q has the name of a builtin type", line.LineNum, name)
	}

	m, err := f.parseRecord(p, name)
	if err != nil {
		return p.Errorf("%s", err)
	}
	f.records[name] = m
	f.order = append(f.order, name)
	return f.findRecord
}

// parseRecord parses field lines up to the closing "}".
func (f *File) parseRecord(p *halfpike.Parser, name string) (*mapping.Map, error) {
	b := mapping.NewBuilder(name)
	fields := 0
	for {
		line, words := nextLine(p)
		if p.EOF(line) {
			return nil, fmt.Errorf("[Line %d] error: record %q: EOF reached before closing '}'", line.LineNum, name)
		}
		if words[0] == "}" {
			if len(words) != 1 {
				return nil, fmt.Errorf("[Line %d] error: unexpected %q after '}'", line.LineNum, strings.Join(words[1:], " "))
			}
			break
		}

		fname, fd, err := f.parseField(words)
		if err != nil {
			return nil, fmt.Errorf("[Line %d] error: record %q: %w", line.LineNum, name, err)
		}
		b.Add(fname, fd)
		fields++
	}

	if fields == 0 {
		return nil, fmt.Errorf("record %q has no fields, which is not valid", name)
	}
	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("record %q: %w", name, err)
	}
	return m, nil
}

// fieldLine is the parsed text of a field line.
type fieldLine struct {
	name     string
	typ      string
	size     int
	offset   int64
	hasOff   bool
	mapping  [][2]string
	def      string
	hasDef   bool
	label    string
	hasLabel bool
}

// parseField parses the words of a field line into a Field.
func (f *File) parseField(words []string) (string, *field.Field, error) {
	if len(words) < 2 {
		return "", nil, fmt.Errorf("field line needs a name and a type, got %q", strings.Join(words, " "))
	}

	fl := fieldLine{name: words[0], typ: words[1]}
	if err := validateFieldName(fl.name); err != nil {
		return "", nil, err
	}

	rest := words[2:]
	typ, builtin := codec.Lookup(fl.typ)
	if builtin && typ.Sized {
		if len(rest) == 0 {
			return "", nil, fmt.Errorf("field %q: type %q needs a size", fl.name, fl.typ)
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			return "", nil, fmt.Errorf("field %q: type %q needs a positive size, got %q", fl.name, fl.typ, rest[0])
		}
		fl.size = n
		rest = rest[1:]
	}

	if err := fl.parseOptions(rest); err != nil {
		return "", nil, fmt.Errorf("field %q: %w", fl.name, err)
	}

	if builtin {
		fd, err := fl.builtin(typ)
		return fl.name, fd, err
	}

	nested, ok := f.records[fl.typ]
	if !ok {
		return "", nil, fmt.Errorf("field %q: unknown type %q", fl.name, fl.typ)
	}
	if fl.mapping != nil || fl.hasDef {
		return "", nil, fmt.Errorf("field %q: record fields cannot have map= or default=", fl.name)
	}
	fd, err := codec.Record(nested, fl.common()...)
	return fl.name, fd, err
}

func (fl *fieldLine) parseOptions(opts []string) error {
	for _, o := range opts {
		switch {
		case strings.HasPrefix(o, "@"):
			if fl.hasOff {
				return fmt.Errorf("offset given twice")
			}
			n, err := strconv.ParseInt(o[1:], 0, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("expected @{{Integer}}, got %q", o)
			}
			fl.offset, fl.hasOff = n, true
		case strings.HasPrefix(o, "map="):
			if fl.mapping != nil {
				return fmt.Errorf("map= given twice")
			}
			for _, kv := range strings.Split(strings.TrimPrefix(o, "map="), ",") {
				k, v, ok := strings.Cut(kv, ":")
				if !ok || k == "" || v == "" {
					return fmt.Errorf("map entry %q is not in the form key:value", kv)
				}
				fl.mapping = append(fl.mapping, [2]string{k, v})
			}
		case strings.HasPrefix(o, "default="):
			if fl.hasDef {
				return fmt.Errorf("default= given twice")
			}
			fl.def, fl.hasDef = strings.TrimPrefix(o, "default="), true
		case strings.HasPrefix(o, "label="):
			if fl.hasLabel {
				return fmt.Errorf("label= given twice")
			}
			fl.label, fl.hasLabel = strings.ReplaceAll(strings.TrimPrefix(o, "label="), "_", " "), true
		default:
			return fmt.Errorf("unknown option %q", o)
		}
	}
	return nil
}

// common returns the options every field type supports.
func (fl *fieldLine) common() []field.Option {
	var opts []field.Option
	if fl.hasOff {
		opts = append(opts, field.WithOffset(fl.offset))
	}
	if fl.hasLabel {
		opts = append(opts, field.WithLabel(fl.label))
	}
	return opts
}

func (fl *fieldLine) builtin(typ codec.Type) (*field.Field, error) {
	opts := fl.common()

	if fl.mapping != nil {
		// Encode the keys with a field of the same type so they have the exact raw form.
		proto, err := typ.New(fl.size)
		if err != nil {
			return nil, err
		}
		pairs := make([]field.Pair, 0, len(fl.mapping))
		for _, kv := range fl.mapping {
			k, err := typ.Parse(kv[0])
			if err != nil {
				return nil, fmt.Errorf("map key %q is not a valid %s: %w", kv[0], typ.Name, err)
			}
			raw, err := proto.Encode(k)
			if err != nil {
				return nil, fmt.Errorf("map key %q: %w", kv[0], err)
			}
			pairs = append(pairs, field.P(raw, kv[1]))
		}
		opts = append(opts, field.WithValueMap(pairs...))
	}

	if fl.hasDef {
		var def any = fl.def
		if fl.mapping == nil {
			var err error
			def, err = typ.Parse(fl.def)
			if err != nil {
				return nil, fmt.Errorf("default %q is not a valid %s: %w", fl.def, typ.Name, err)
			}
		}
		opts = append(opts, field.WithDefault(def))
	}

	return typ.New(fl.size, opts...)
}

// nextLine returns the next line that is not blank or a comment, along with its words.
func nextLine(p *halfpike.Parser) (halfpike.Line, []string) {
	for {
		line := p.Next()
		if p.EOF(line) {
			return line, nil
		}
		raw := line.Raw
		if i := strings.Index(raw, "//"); i >= 0 {
			raw = raw[:i]
		}
		words := strings.Fields(raw)
		if len(words) == 0 {
			continue
		}
		return line, words
	}
}

func caseSensitiveCheck(want string, item string) error {
	if item != want {
		if strings.EqualFold(item, want) {
			return fmt.Errorf("%q keyword found, but it is required to be %q", item, want)
		}
		return fmt.Errorf("got: %q, want: %q", item, want)
	}
	return nil
}

func validateIdent(ident string) error {
	runes := []rune(ident)
	if !unicode.IsLetter(runes[0]) {
		return fmt.Errorf("identifier must start with a letter")
	}
	if unicode.IsLower(runes[0]) {
		return fmt.Errorf("identifier cannot start with a lowercase letter")
	}
	for _, r := range runes[1:] {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			continue
		}
		return fmt.Errorf("identifier contains character %q which is invalid for an identifier", r)
	}
	return nil
}

func validateFieldName(name string) error {
	runes := []rune(name)
	if !unicode.IsLetter(runes[0]) {
		return fmt.Errorf("field name %q must start with a letter", name)
	}
	for _, r := range runes[1:] {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
			continue
		}
		return fmt.Errorf("field name %q contains character %q which is invalid for a field name", name, r)
	}
	return nil
}
