package layout

import (
	"errors"
	"fmt"

	"github.com/wader/bitlayout/pkg/bitint"
)

var (
	ErrUnknownField    = errors.New("unknown field")
	ErrNotReadable     = errors.New("field is write-only")
	ErrNotWritable     = errors.New("field is read-only")
	ErrRepeated        = errors.New("field is repeated and needs an index")
	ErrNotRepeated     = errors.New("field is not repeated")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrType            = errors.New("invalid value type")
	ErrOverflow        = bitint.ErrOverflow
)

// SpecError is a layout definition error found by Compile.
type SpecError struct {
	Layout string
	Field  string
	Range  *Range
	Err    error
}

func (e *SpecError) Unwrap() error { return e.Err }

func (e *SpecError) Error() string {
	s := e.Layout
	if e.Field != "" {
		s += "." + e.Field
	}
	if e.Range != nil {
		s += fmt.Sprintf(" (bits %s)", e.Range)
	}
	return fmt.Sprintf("%s: %s", s, e.Err)
}

// FieldError is a failed read or write of a field. Index is -1 for plain fields.
type FieldError struct {
	Layout string
	Field  string
	Index  int
	Err    error
}

func (e *FieldError) Unwrap() error { return e.Err }

func (e *FieldError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s.%s[%d]: %s", e.Layout, e.Field, e.Index, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Layout, e.Field, e.Err)
}
