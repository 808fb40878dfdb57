package internal

import (
	"errors"
	"fmt"
)

// ErrCanceled is reported when a run stopped because its context was canceled.
var ErrCanceled = errors.New("run canceled")

// ParseError means a file could not be parsed by its handler. The file is
// skipped and the run continues.
type ParseError struct {
	Path   string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("parse %s at byte %d: %v", e.Path, e.Offset, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MaskCollisionError means no token alphabet could be used for a string.
type MaskCollisionError struct {
	Unit UnitID
	Text string
}

func (e *MaskCollisionError) Error() string {
	return fmt.Sprintf("mask %s: every token alphabet occurs in the source text", e.Unit)
}

// TranslationValidationError means an LLM response was rejected.
type TranslationValidationError struct {
	Unit   *UnitID
	Reason string
}

func (e *TranslationValidationError) Error() string {
	if e.Unit != nil {
		return fmt.Sprintf("invalid translation for %s: %s", e.Unit, e.Reason)
	}
	return "invalid translation response: " + e.Reason
}

// SerializationError means a translated unit broke the file grammar.
type SerializationError struct {
	Unit UnitID
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Unit, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// FatalIOError aborts a run: the output destination cannot be written.
type FatalIOError struct {
	Path string
	Err  error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("output %s: %v", e.Path, e.Err)
}

func (e *FatalIOError) Unwrap() error { return e.Err }

// FatalCapabilityError aborts a run: the translation capability is unreachable.
type FatalCapabilityError struct {
	Provider string
	Err      error
}

func (e *FatalCapabilityError) Error() string {
	return fmt.Sprintf("translation provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *FatalCapabilityError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	var ioErr *FatalIOError
	var capErr *FatalCapabilityError
	return errors.As(err, &ioErr) || errors.As(err, &capErr)
}
