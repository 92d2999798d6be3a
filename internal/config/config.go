// Package config handles lunette.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file
const FileName = "lunette.toml"

// Config represents a lunette.toml file.
type Config struct {
	Compile Compile        `toml:"compile"`
	Run     Run            `toml:"run"`
	Listing Listing        `toml:"listing"`
	Globals map[string]any `toml:"globals"`

	// Dir is the directory containing the lunette.toml file (set at load time).
	Dir string `toml:"-"`
}

// Compile configures chunk output.
type Compile struct {
	Output    string `toml:"output"`
	Strip     bool   `toml:"strip"`
	ChunkName string `toml:"chunk_name"`
	BigEndian bool   `toml:"big_endian"`
}

// Run configures execution.
type Run struct {
	Trace    bool `toml:"trace"`
	MaxSteps int  `toml:"max_steps"`
}

// Listing configures disassembly output.
type Listing struct {
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is found
func Default() *Config {
	return &Config{
		Compile: Compile{Output: "luac.out"},
		Listing: Listing{Format: "text"},
	}
}

// Load parses a lunette.toml file from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	return c, nil
}

// FindAndLoad walks up from startDir to find a lunette.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// OutputPath resolves the configured output relative to the config directory
func (c *Config) OutputPath() string {
	if c.Compile.Output == "" || filepath.IsAbs(c.Compile.Output) || c.Dir == "" {
		return c.Compile.Output
	}

	return filepath.Join(c.Dir, c.Compile.Output)
}
