package pdx

import (
	"errors"
	"fmt"
)

// Parse failure reasons. Use errors.Is against a *ParseError.
var (
	ErrUnterminatedString = errors.New("unterminated string")
	ErrUnexpectedClose    = errors.New("unexpected '}'")
	ErrUnterminatedArray  = errors.New("unterminated array")
	ErrInvalidColor       = errors.New("invalid color arity")
	ErrUnexpectedEquals   = errors.New("unexpected '='")
	ErrMissingValue       = errors.New("missing value after '='")
)

// ParseError reports where in the input a parse failed.
type ParseError struct {
	Offset int
	Reason error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("pdx:%d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("pdx:%d: %s (%s)", e.Offset, e.Reason, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Reason }
