// Package query evaluates jq expressions over decoded containers.
package query

import (
	"fmt"
	"math"

	"github.com/wader/bitlayout/pkg/layout"
	"github.com/wader/gojq"
)

// Query is a compiled expression. The input is Container.Map, $raw the raw
// value and $layout the layout name.
type Query struct {
	src  string
	code *gojq.Code
}

func Compile(src string) (*Query, error) {
	p, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	code, err := gojq.Compile(p, gojq.WithVariables([]string{"$raw", "$layout"}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return &Query{src: src, code: code}, nil
}

func (q *Query) String() string { return q.src }

// Run collects all outputs, stopping at the first error.
func (q *Query) Run(c layout.Container) ([]any, error) {
	iter := q.code.Run(c.Map(), raw(c), c.Layout().Name())
	var vs []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return vs, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

func Run(c layout.Container, src string) ([]any, error) {
	q, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return q.Run(c)
}

func raw(c layout.Container) any {
	b := c.Int().Big()
	if b.IsInt64() && b.Int64() <= math.MaxInt {
		return int(b.Int64())
	}
	return b
}
