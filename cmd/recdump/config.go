package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bearlytools/binrec/compress"
	"github.com/bearlytools/binrec/recfile"
)

// config holds the settings of a run. Values come from the TOML file given with -config and are
// then overridden by any flags that were set.
type config struct {
	Layout      string
	Record      string
	Compression compress.Type
	Lazy        bool
	Indent      string
	SkipMissing bool
	UseLabels   bool
	Debug       bool
	Telemetry   bool
}

type fileConfig struct {
	Layout      string `toml:"layout"`
	Record      string `toml:"record"`
	Compression string `toml:"compression"`
	Lazy        bool   `toml:"lazy"`
	Indent      string `toml:"indent"`
	SkipMissing bool   `toml:"skip_missing"`
	UseLabels   bool   `toml:"use_labels"`
	Debug       bool   `toml:"debug"`
	Telemetry   bool   `toml:"telemetry"`
}

func loadConfig(fsys recfile.FS, path string) (config, error) {
	var cfg config

	data, err := fsys.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var raw fileConfig
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return cfg, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return cfg, fmt.Errorf("config %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.Layout = strings.TrimSpace(raw.Layout)
	cfg.Record = strings.TrimSpace(raw.Record)
	if meta.IsDefined("compression") {
		cfg.Compression, err = compress.Parse(strings.TrimSpace(raw.Compression))
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.Lazy = raw.Lazy
	cfg.Indent = raw.Indent
	cfg.SkipMissing = raw.SkipMissing
	cfg.UseLabels = raw.UseLabels
	cfg.Debug = raw.Debug
	cfg.Telemetry = raw.Telemetry
	return cfg, nil
}
