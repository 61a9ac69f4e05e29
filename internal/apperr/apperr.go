package apperr

import "errors"

// Kind classifies recoverable failures of the scheduling core.
// Params: one of the Kind constants.
// Returns: category used by logging and HTTP status mapping.
type Kind string

const (
	// KindPersistence marks store load/save failures.
	KindPersistence Kind = "persistence"
	// KindPlayback marks audio start failures.
	KindPlayback Kind = "playback"
	// KindValidation marks rejected user input.
	KindValidation Kind = "validation"
	// KindInvariant marks operations refused by a precondition.
	KindInvariant Kind = "invariant"
)

// Error wraps a root cause with its failure kind.
// Params: kind marker and wrapped cause.
// Returns: typed error discoverable with errors.As.
type Error struct {
	Kind Kind
	Err  error
}

// Error returns wrapped error message.
// Params: none.
// Returns: string representation.
func (e Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

// Unwrap exposes wrapped cause for errors.Is/errors.As.
// Params: none.
// Returns: wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Mark wraps error with kind marker.
// Params: kind and source error.
// Returns: wrapped error or nil.
func Mark(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return Error{Kind: kind, Err: err}
}

// Validation builds validation error from message.
func Validation(msg string) error {
	return Error{Kind: KindValidation, Err: errors.New(msg)}
}

// KindOf reports the outermost kind marker of err.
// Params: candidate error.
// Returns: kind and true when a marker is present.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var tagged Error
	if !errors.As(err, &tagged) {
		return "", false
	}
	return tagged.Kind, true
}

// Is reports whether err carries the given kind marker.
func Is(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}
