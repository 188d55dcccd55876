// Package config loads and validates .spp.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigFile is the filename probed in the project root.
const DefaultConfigFile = ".spp.toml"

// Config is the full project configuration.
type Config struct {
	Project    Project           `toml:"project"`
	Preprocess Preprocess        `toml:"preprocess"`
	Watch      Watch             `toml:"watch"`
	Defines    map[string]string `toml:"defines"`
}

// Project identifies the shader project.
type Project struct {
	Name string `toml:"name"`
	Root string `toml:"root"` // resolved to absolute on load
}

// Preprocess configures include resolution and output placement.
type Preprocess struct {
	IncludeDirs []string `toml:"include_dirs"` // searched for both include spellings
	SystemDirs  []string `toml:"system_dirs"`  // searched for <...> after include_dirs
	OutputDir   string   `toml:"output_dir"`   // "" writes next to the input
	MaxFileSize int64    `toml:"max_file_size"`
}

// Watch configures rebuild-on-change behavior.
type Watch struct {
	DebounceMs int      `toml:"debounce_ms"`
	Include    []string `toml:"include"` // doublestar globs; empty matches everything
	Exclude    []string `toml:"exclude"`
}

// Default returns the configuration used when no .spp.toml exists.
func Default() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return &Config{
		Project: Project{Root: root},
		Preprocess: Preprocess{
			MaxFileSize: 10 * 1024 * 1024,
		},
		Watch: Watch{
			DebounceMs: 100,
			Exclude:    []string{"**/.git/**"},
		},
		Defines: map[string]string{},
	}
}

// Load reads path, falling back to defaults when the file does not exist.
// Relative directories in the file resolve against the file's own directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, NewConfigError("file", path, err)
	}
	// the root falls back to the file's directory unless the file sets one
	cfg.Project.Root = ""
	if err := toml.Unmarshal(content, cfg); err != nil {
		return nil, NewConfigError("file", path, err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, NewConfigError("file", path, err)
	}
	if cfg.Project.Root == "" {
		cfg.Project.Root = base
	}
	cfg.Project.Root = absJoin(base, cfg.Project.Root)
	for i, dir := range cfg.Preprocess.IncludeDirs {
		cfg.Preprocess.IncludeDirs[i] = absJoin(base, dir)
	}
	for i, dir := range cfg.Preprocess.SystemDirs {
		cfg.Preprocess.SystemDirs[i] = absJoin(base, dir)
	}
	if cfg.Preprocess.OutputDir != "" {
		cfg.Preprocess.OutputDir = absJoin(base, cfg.Preprocess.OutputDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that values are within usable ranges.
func (c *Config) Validate() error {
	if c.Preprocess.MaxFileSize <= 0 {
		return NewConfigError("preprocess.max_file_size",
			fmt.Sprint(c.Preprocess.MaxFileSize), fmt.Errorf("must be positive"))
	}
	if c.Watch.DebounceMs < 0 || c.Watch.DebounceMs > 60_000 {
		return NewConfigError("watch.debounce_ms",
			fmt.Sprint(c.Watch.DebounceMs), fmt.Errorf("must be between 0 and 60000"))
	}
	for name := range c.Defines {
		if !validDefineName(name) {
			return NewConfigError("defines", name, fmt.Errorf("not a valid identifier"))
		}
	}
	return nil
}

// Debounce returns the watch debounce as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

func validDefineName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		alpha := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		digit := c >= '0' && c <= '9'
		if i == 0 && !alpha {
			return false
		}
		if !alpha && !digit {
			return false
		}
	}
	return true
}

func absJoin(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
