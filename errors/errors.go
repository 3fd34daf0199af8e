// Package errors provides the errors package for binrec. It wraps github.com/gostdlib/base/errors
// so every failure carries a Category and Type, and it includes the stdlib's functions and types.
package errors

import (
	"fmt"

	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/errors"
)

// Category represents the category of the error.
type Category uint32

func (c Category) Category() string {
	return c.String()
}

func (c Category) String() string {
	switch c {
	case CatUser:
		return "User"
	case CatInternal:
		return "Internal"
	}
	return "Unknown"
}

const (
	// CatUnknown represents an unknown category. This should not be used.
	CatUnknown Category = Category(0) // Unknown
	// CatUser represents an error that is caused by bad user input, which includes bad data
	// handed to a decoder and bad schema declarations.
	CatUser Category = Category(1) // User
	// CatInternal represents an internal error.
	CatInternal Category = Category(2) // Internal
)

// Type represents the type of the error.
type Type uint16

func (t Type) Type() string {
	return t.String()
}

func (t Type) String() string {
	switch t {
	case TypeBug:
		return "Bug"
	case TypeParameter:
		return "Parameter"
	case TypeFS:
		return "FS"
	case TypeMissingField:
		return "MissingField"
	case TypeInvalidValue:
		return "InvalidValue"
	case TypeSchema:
		return "Schema"
	case TypeEndOfStream:
		return "EndOfStream"
	case TypeStream:
		return "Stream"
	}
	return "Unknown"
}

const (
	// TypeUnknown represents an unknown type.
	TypeUnknown Type = Type(0) // Unknown
	// TypeBug represents a bug in the calling code. An example would be a switch statement that
	// doesn't cover all cases.
	TypeBug Type = Type(1) // Bug
	// TypeParameter represents an error with a parameter that didn't pass validation.
	TypeParameter Type = Type(2) // Parameter
	// TypeFS represents an error with the file system.
	TypeFS Type = Type(5) // FS

	// TypeMissingField means a field had no data in the stream and no default, or was never
	// read or set before a dump.
	TypeMissingField Type = Type(100) // MissingField
	// TypeInvalidValue means a value could not be decoded or encoded by a field.
	TypeInvalidValue Type = Type(101) // InvalidValue
	// TypeSchema means a structure or field declaration is invalid.
	TypeSchema Type = Type(102) // Schema
	// TypeEndOfStream means the stream ran out of bytes before a field was fully read.
	TypeEndOfStream Type = Type(103) // EndOfStream
	// TypeStream represents an error returned by the underlying stream itself.
	TypeStream Type = Type(104) // Stream
)

// Sentinels wrapped by every Error of the matching Type. Use Is() to test for them.
var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidValue = errors.New("invalid value")
	ErrSchema       = errors.New("schema error")
	ErrEndOfStream  = errors.New("end of stream")
)

// LogAttrer is an interface that can be implemented by an error to return a list of attributes
// used in logging.
type LogAttrer = errors.LogAttrer

// Error is the error type for this module. Error implements github.com/gostdlib/base/errors.E .
type Error = errors.Error

// EOption is an optional argument for E().
type EOption = errors.EOption

// WithCallNum is used if you need to set the runtime.CallNum() in order to get the correct filename and line.
// This can happen if you create a call wrapper around E(), because you would then need to look up one more stack frame
// for every wrapper. This defaults to 1 which sets to the frame of the caller of E().
func WithCallNum(i int) EOption {
	return errors.WithCallNum(i)
}

// WithStackTrace will add a stack trace to the error. This is not recommended for general use as
// it can cause performance issues when errors are created frequently.
func WithStackTrace() EOption {
	return errors.WithStackTrace()
}

// E creates a new Error with the given parameters.
func E(ctx context.Context, c errors.Category, t errors.Type, msg error, options ...errors.EOption) Error {
	// This makes sure we do the correct call number since we are a wrapper. Now, if they set the
	// call number, this will not override it.
	opts := make([]errors.EOption, 0, len(options)+1)
	opts = append(opts, WithCallNum(2))
	opts = append(opts, options...)

	return errors.E(ctx, c, t, msg, opts...)
}

// MissingField returns an Error of TypeMissingField for the named field. cause may be nil.
func MissingField(ctx context.Context, name string, cause error) Error {
	var msg error
	if cause != nil {
		msg = fmt.Errorf("%w: field %q has no data: %w", ErrMissingField, name, cause)
	} else {
		msg = fmt.Errorf("%w: field %q has no data", ErrMissingField, name)
	}
	return errors.E(ctx, CatUser, TypeMissingField, msg, WithCallNum(2))
}

// InvalidValue returns an Error of TypeInvalidValue for the named field.
func InvalidValue(ctx context.Context, name string, format string, a ...any) Error {
	msg := fmt.Errorf("%w: field %q: %s", ErrInvalidValue, name, fmt.Sprintf(format, a...))
	return errors.E(ctx, CatUser, TypeInvalidValue, msg, WithCallNum(2))
}

// Schema returns an Error of TypeSchema.
func Schema(ctx context.Context, format string, a ...any) Error {
	msg := fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, a...))
	return errors.E(ctx, CatUser, TypeSchema, msg, WithCallNum(2))
}

// EndOfStream returns an Error of TypeEndOfStream. want is the number of bytes requested and got
// is the number that were available.
func EndOfStream(ctx context.Context, want, got int) Error {
	msg := fmt.Errorf("%w: wanted %d bytes, got %d", ErrEndOfStream, want, got)
	return errors.E(ctx, CatUser, TypeEndOfStream, msg, WithCallNum(2))
}

// Stream returns an Error of TypeStream wrapping an error returned by a stream.
func Stream(ctx context.Context, op string, err error) Error {
	return errors.E(ctx, CatInternal, TypeStream, fmt.Errorf("stream %s: %w", op, err), WithCallNum(2))
}
