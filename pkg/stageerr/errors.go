// Package stageerr provides the error type returned by pipeline stages.
//
// Every stage failure is wrapped once, at the point where it happened, into
// an *Error that records the failing stage, a short message, the cause, and the
// file/line/function that created it. Callers select failures by kind:
//
//	if errors.Is(err, stageerr.Training) { ... }
//
// and reach the underlying cause with errors.Unwrap or errors.As.
package stageerr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies a stage failure. A Kind is itself an error so it can be
// used as the target of errors.Is.
type Kind string

const (
	Ingestion      Kind = "IngestionError"
	Validation     Kind = "ValidationError"
	Transformation Kind = "TransformationError"
	Training       Kind = "TrainingError"
	Evaluation     Kind = "EvaluationError"
	Publish        Kind = "PublishError"
)

func (k Kind) Error() string {
	return string(k)
}

// Stage returns the pipeline stage name a kind belongs to.
func (k Kind) Stage() string {
	switch k {
	case Ingestion:
		return "ingestion"
	case Validation:
		return "validation"
	case Transformation:
		return "transformation"
	case Training:
		return "trainer"
	case Evaluation:
		return "evaluation"
	case Publish:
		return "pusher"
	}
	return "unknown"
}

// Error is a stage failure with the location it was raised from.
type Error struct {
	Kind  Kind
	Stage string
	Msg   string
	Err   error

	file     string
	line     int
	funcname string
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("%s:%d", filepath.Base(e.file), e.line)
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s @ %s (%s): %s", e.Stage, e.Kind, loc, e.funcname, e.Msg)
	}
	return fmt.Sprintf("[%s] %s @ %s (%s): %s: %s", e.Stage, e.Kind, loc, e.funcname, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// File is the source file where the error was created.
func (e *Error) File() string {
	return e.file
}

// Line is the source line where the error was created.
func (e *Error) Line() int {
	return e.line
}

// Func is the fully qualified function name where the error was created.
func (e *Error) Func() string {
	return e.funcname
}

// New wraps cause as a failure of the given kind. cause may be nil.
func New(kind Kind, msg string, cause error) error {
	return wrap(kind, msg, cause, 1)
}

// NewDepth is New for helpers that wrap on behalf of their caller. skip is
// the number of helper frames between the failure site and NewDepth.
func NewDepth(skip int, kind Kind, msg string, cause error) error {
	return wrap(kind, msg, cause, 1+skip)
}

// KindOf extracts the kind of a stage failure anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func wrap(kind Kind, msg string, cause error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	funcname := "(unknown func)"
	if !ok {
		file = "?"
		line = -1
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcname = fn.Name()
	}
	return &Error{
		Kind:     kind,
		Stage:    kind.Stage(),
		Msg:      msg,
		Err:      cause,
		file:     file,
		line:     line,
		funcname: funcname,
	}
}
