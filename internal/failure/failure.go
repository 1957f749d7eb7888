// Package failure classifies the errors that end a run and maps them to exit codes.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind uint8

const (
	Internal Kind = iota
	Configuration
	NoVideoTrack
	Encode
	CodecExtraction
	InspectorUnavailable
)

var kindNames = map[Kind]string{
	Internal:             "internal",
	Configuration:        "configuration",
	NoVideoTrack:         "no video track",
	Encode:               "encode",
	CodecExtraction:      "codec extraction",
	InspectorUnavailable: "inspector unavailable",
}

var exitCodes = map[Kind]int{
	Internal:      1,
	Configuration: 2,
	NoVideoTrack:  3,
	Encode:        4,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Configf builds a Configuration failure from a format string.
func Configf(format string, args ...any) error {
	return &Error{Kind: Configuration, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[KindOf(err)]; ok {
		return code
	}
	return 1
}
