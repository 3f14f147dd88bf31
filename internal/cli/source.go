package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wader/bitlayout/format"
	"github.com/wader/bitlayout/pkg/layout"
	"github.com/wader/bitlayout/pkg/schema"
)

var schemaExts = []string{".yml", ".yaml", ".toml", ".json"}

// resolve finds name as given or in one of the configured schema dirs, with
// or without extension.
func (a *app) resolve(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("%s: schema not found", name)
	}
	for _, dir := range a.cfg.SchemaDirs {
		p := filepath.Join(dir, name)
		candidates := []string{p}
		if filepath.Ext(name) == "" {
			for _, ext := range schemaExts {
				candidates = append(candidates, p+ext)
			}
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%s: schema not found", name)
}

func parseSchema(path string, b []byte) (*schema.Schema, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return schema.ParseTOML(b)
	case ".json":
		m := map[string]any{}
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return schema.FromMap(m)
	default:
		return schema.ParseYAML(b)
	}
}

type source struct {
	schema *schema.Schema
	layout *layout.Layout
	// yaml is the schema as YAML, the file itself for YAML schemas
	yaml []byte
}

func (a *app) loadFile(name string) (*source, error) {
	path, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a.log.Printf("loading %s", path)

	pathErr := func(err error) error {
		var ve schema.ValueError
		if errors.As(err, &ve) {
			return fmt.Errorf("%s:%w", path, err)
		}
		return fmt.Errorf("%s: %w", path, err)
	}

	s, err := parseSchema(path, b)
	if err != nil {
		return nil, pathErr(err)
	}
	l, err := s.Compile(layout.WithLogger(a.log))
	if err != nil {
		return nil, pathErr(err)
	}
	src := b
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".json":
		if src, err = s.YAML(); err != nil {
			return nil, err
		}
	}
	return &source{schema: s, layout: l, yaml: src}, nil
}

func (a *app) loadFormat(name string) (*source, error) {
	s, err := format.Lookup(name)
	if err != nil {
		return nil, err
	}
	l, err := format.Layout(name)
	if err != nil {
		return nil, err
	}
	src, err := s.YAML()
	if err != nil {
		return nil, err
	}
	a.log.Printf("using format %s", name)
	return &source{schema: s, layout: l, yaml: src}, nil
}

// load uses --schema if given, otherwise --format or the configured format.
func (a *app) load() (*source, error) {
	switch {
	case a.schemaPath != "":
		return a.loadFile(a.schemaPath)
	case a.formatName != "":
		return a.loadFormat(a.formatName)
	}
	return nil, errors.New("no schema, use --schema or --format")
}
