package troupe

import (
	"errors"
	"fmt"
)

// HandlerError is returned by Wait when a handle function turned a receive failure into a
// fatal error. It carries the triggering message and the implicated worker.
type HandlerError struct {
	Err     error
	Message any
	ActorID int
}

func newHandlerError(err error, msg any, actorID int) error {
	if err == nil {
		return nil
	}
	var he *HandlerError
	if errors.As(err, &he) {
		return err
	}
	return &HandlerError{Err: err, Message: msg, ActorID: actorID}
}

func (e *HandlerError) Error() string { return e.Err.Error() }
func (e *HandlerError) Unwrap() error { return e.Err }

func (e *HandlerError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "actor(id=%d,message=%v): %+v", e.ActorID, e.Message, e.Err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractMessage returns the message that triggered err, if err is a HandlerError.
func ExtractMessage(err error) (any, bool) {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Message, true
	}
	return nil, false
}

// ExtractActorID returns the id of the worker that failed, if err is a HandlerError.
func ExtractActorID(err error) (int, bool) {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.ActorID, true
	}
	return 0, false
}
