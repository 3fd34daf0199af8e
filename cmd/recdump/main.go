// Command recdump prints a binary record as JSON.
//
//	recdump -layout pixel.layout -record Pixel [-config recdump.toml]
//		[-compression none|gzip|snappy|zstd] [-lazy] [-indent] data.bin
//
// The config file is TOML with the keys layout, record, compression, lazy, indent, skip_missing,
// use_labels, debug and telemetry. Flags override the file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	osfs "github.com/gopherfs/fs/io/os"
	"github.com/gostdlib/base/context"
	"go.uber.org/zap"

	"github.com/bearlytools/binrec"
	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/idl"
	"github.com/bearlytools/binrec/recfile"
	"github.com/bearlytools/binrec/recjson"
	"github.com/bearlytools/binrec/telemetry"
)

func main() {
	ctx := context.Background()

	fsys, err := osfs.New()
	if err != nil {
		exitf("can't access OS: %s", err)
	}
	if err := run(ctx, os.Args[1:], fsys, os.Stdout, os.Stderr); err != nil {
		exit(err)
	}
}

func run(ctx context.Context, args []string, fsys recfile.FS, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("recdump", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath  = flags.String("config", "", "path to a TOML config file")
		layout      = flags.String("layout", "", "path to the layout file")
		record      = flags.String("record", "", "name of the record in the layout file")
		compression = flags.String("compression", "none", "compression of the data file: none, gzip, snappy or zstd")
		lazy        = flags.Bool("lazy", false, "read fields on access instead of when loading")
		indent      = flags.Bool("indent", false, "indent the JSON output")
		skipMissing = flags.Bool("skip-missing", false, "leave out fields the data file ends before")
		useLabels   = flags.Bool("labels", false, "use field labels as JSON keys")
		debug       = flags.Bool("debug", false, "log debug output to stderr")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := config{}
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(fsys, *configPath)
		if err != nil {
			return err
		}
	}

	var flagErr error
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "layout":
			cfg.Layout = *layout
		case "record":
			cfg.Record = *record
		case "compression":
			ct, err := compress.Parse(*compression)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Compression = ct
		case "lazy":
			cfg.Lazy = *lazy
		case "indent":
			cfg.Indent = ""
			if *indent {
				cfg.Indent = "  "
			}
		case "skip-missing":
			cfg.SkipMissing = *skipMissing
		case "labels":
			cfg.UseLabels = *useLabels
		case "debug":
			cfg.Debug = *debug
		}
	})
	if flagErr != nil {
		return flagErr
	}

	if cfg.Layout == "" || cfg.Record == "" {
		return fmt.Errorf("-layout and -record are required")
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("expected exactly one data file, got %d", flags.NArg())
	}

	if cfg.Debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("could not create a logger: %w", err)
		}
		binrec.SetLogger(l)
		defer binrec.SetLogger(nil)
	}

	file, err := idl.ParseFile(ctx, fsys, cfg.Layout)
	if err != nil {
		return err
	}
	m, ok := file.Record(cfg.Record)
	if !ok {
		return fmt.Errorf("layout %s has no record %q, it has %v", cfg.Layout, cfg.Record, file.Names())
	}

	opts := []recfile.Option{
		recfile.WithFS(fsys),
		recfile.WithCompression(cfg.Compression),
		recfile.WithEager(!cfg.Lazy),
	}
	if cfg.Telemetry {
		obs, err := telemetry.New(ctx, telemetry.DefaultConfig())
		if err != nil {
			return fmt.Errorf("could not set up telemetry: %w", err)
		}
		opts = append(opts, recfile.WithObserver(obs))
	}

	s, err := recfile.Read(ctx, m, flags.Arg(0), opts...)
	if err != nil {
		return err
	}
	defer s.Release()

	jsonOpts := []recjson.MarshalOption{
		recjson.WithSkipMissing(cfg.SkipMissing),
		recjson.WithUseLabels(cfg.UseLabels),
	}
	if cfg.Indent != "" {
		jsonOpts = append(jsonOpts, recjson.WithIndent(cfg.Indent))
	}
	return recjson.MarshalWriter(ctx, s, stdout, jsonOpts...)
}

func exit(i ...any) {
	fmt.Fprintln(os.Stderr, i...)
	os.Exit(1)
}

func exitf(s string, i ...any) {
	fmt.Fprintf(os.Stderr, s+"\n", i...)
	os.Exit(1)
}
