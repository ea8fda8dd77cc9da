package briefing

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Match them with errors.Is on any error returned by the
// generator, store, state and editor packages.
var (
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("generation endpoint failed")
	ErrDataStore  = errors.New("data store failed")
	ErrNotFound   = errors.New("briefing not found")
)

// Error is a classified failure: Kind is one of the sentinels above, Op names
// the operation that failed.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ValidationError reports caller-side input problems (blank conversation,
// invalid numeric field, schema violations).
func ValidationError(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: msg}
}

// NetworkError reports a transport failure or non-2xx reply from the
// generation endpoint.
func NetworkError(op string, err error) error {
	return &Error{Kind: ErrNetwork, Op: op, Err: err}
}

// DataStoreError reports a failed select/insert/update/delete.
func DataStoreError(op string, err error) error {
	return &Error{Kind: ErrDataStore, Op: op, Err: err}
}

// NotFoundError reports a missing briefing id.
func NotFoundError(op, id string) error {
	return &Error{Kind: ErrNotFound, Op: op, Msg: fmt.Sprintf("briefing %s not found", id)}
}

// KindOf returns the sentinel kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrNetwork, ErrDataStore} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
