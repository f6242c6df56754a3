package senie

import "github.com/pkg/errors"

// ParseError is returned by Parse when the source cannot be turned into
// an AST: unmatched brackets, an unterminated string, or a non-alterable
// node type appearing inside { ... }.
type ParseError struct {
	Pos Location
	Msg string
}

func (e *ParseError) Error() string {
	return errors.Wrapf(errFmt(e.Msg), "parse error at %s", e.Pos).Error()
}

// CompileError is returned by the compiler: word-table overflow, an
// unknown function, argument-slot overflow, and similar static faults.
type CompileError struct {
	Msg string
}

func (e *CompileError) Error() string {
	return errors.Wrap(errFmt(e.Msg), "compile error").Error()
}

// SerializeError is returned by the textual codec: unknown tag, or an
// attempt to serialize a VECTOR-typed Var (explicitly unserializable).
type SerializeError struct {
	Msg string
}

func (e *SerializeError) Error() string {
	return errors.Wrap(errFmt(e.Msg), "serialization error").Error()
}

func errFmt(msg string) error {
	return errors.New(msg)
}

func wrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}
