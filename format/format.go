// Package format is a registry of built-in layouts. Format packages register
// their schemas in init and importing them makes the layouts available by name.
package format

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wader/bitlayout/pkg/layout"
	"github.com/wader/bitlayout/pkg/schema"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrNotFound = errors.New("format not found")

type entry struct {
	schema *schema.Schema
	layout *layout.Layout
}

var (
	mu      sync.RWMutex
	entries = map[string]entry{}
)

// Register compiles s and adds it under its meta id.
func Register(s *schema.Schema) (*layout.Layout, error) {
	l, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := entries[s.Name()]; ok {
		return nil, fmt.Errorf("%s: already registered", s.Name())
	}
	entries[s.Name()] = entry{schema: s.Clone(), layout: l}

	return l, nil
}

// MustRegisterYAML is used by format packages in init.
func MustRegisterYAML(b []byte) *layout.Layout {
	s, err := schema.ParseYAML(b)
	if err != nil {
		panic(err)
	}
	l, err := Register(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Lookup returns a copy of the schema registered as name.
func Lookup(name string) (*schema.Schema, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.schema.Clone(), nil
}

// Layout returns the compiled layout registered as name.
func Layout(name string) (*layout.Layout, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.layout, nil
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	ns := maps.Keys(entries)
	slices.Sort(ns)
	return ns
}
