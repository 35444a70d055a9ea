// Package provision loads the engine configuration and the static lookup
// tables that are supplied once before the first event.
package provision

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sidelink-sim/ore-engine/internal/fsutil"
	"github.com/sidelink-sim/ore-engine/sim"
)

// LoadEngineConfig reads a YAML engine config on top of sim.DefaultEngineConfig.
// Uses strict parsing: unrecognized keys (typos) are rejected. A relative
// tables.dir is taken relative to the config file.
func LoadEngineConfig(fsys fsutil.FileSystem, path string) (*sim.EngineConfig, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	cfg, err := ParseEngineConfig(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(cfg.Tables.Dir) {
		cfg.Tables.Dir = filepath.Join(filepath.Dir(path), cfg.Tables.Dir)
	}
	return cfg, nil
}

// ParseEngineConfig decodes YAML bytes on top of the defaults. Sections and
// fields absent from the document keep their default values; lists present in
// the document replace the default list.
func ParseEngineConfig(data []byte) (*sim.EngineConfig, error) {
	cfg := sim.DefaultEngineConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	return &cfg, nil
}
