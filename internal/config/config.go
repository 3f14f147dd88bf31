// Package config loads the bitlayout CLI configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"golang.org/x/exp/slices"
)

var (
	Outputs = []string{"table", "json", "yaml"}
	Colors  = []string{"auto", "always", "never"}
)

type Config struct {
	// Format is the built-in format used when no schema file is given
	Format      string   `toml:"format"`
	Output      string   `toml:"output" default:"table"`
	Color       string   `toml:"color" default:"auto"`
	Prompt      string   `toml:"prompt" default:"bitlayout> "`
	HistoryFile string   `toml:"history_file"`
	SchemaDirs  []string `toml:"schema_dirs"`
}

func Default() Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}
	return c
}

// Path is $XDG_CONFIG_HOME/bitlayout/config.toml or the platform equivalent.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bitlayout", "config.toml"), nil
}

// Load reads path, or the default path when empty. A missing default config
// file is not an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = Path(); err != nil {
			return Default(), nil
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	c, err := Decode(string(b))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode decodes TOML on top of the defaults. Unknown keys are an error.
func Decode(s string) (Config, error) {
	c := Default()
	md, err := toml.Decode(s, &c)
	if err != nil {
		return Config{}, err
	}
	if u := md.Undecoded(); len(u) > 0 {
		var keys []string
		for _, k := range u {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if !slices.Contains(Outputs, c.Output) {
		return fmt.Errorf("output %q is not one of %s", c.Output, strings.Join(Outputs, ", "))
	}
	if !slices.Contains(Colors, c.Color) {
		return fmt.Errorf("color %q is not one of %s", c.Color, strings.Join(Colors, ", "))
	}
	return nil
}

// History is the readline history path, empty disables history.
func (c Config) History() string {
	if c.HistoryFile != "" {
		return c.HistoryFile
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "bitlayout", "history")
}
