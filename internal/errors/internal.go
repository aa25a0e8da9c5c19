package errors

import (
	stderrors "errors"
	"fmt"
)

// InternalError is raised when a caller breaks an invariant of the core.
// It indicates a bug in an earlier pass, never bad user input.
type InternalError struct {
	Code    string
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error[%s]: %s", e.Code, e.Message)
}

// Fail aborts the current compilation with an internal compiler error.
func Fail(code, format string, args ...interface{}) {
	panic(&InternalError{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Assert fails with the given code when cond does not hold.
func Assert(cond bool, code, format string, args ...interface{}) {
	if !cond {
		Fail(code, format, args...)
	}
}

// Recover turns an internal compiler error panic into an error stored in
// *err. Any other panic keeps unwinding. Use it deferred at API boundaries.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ice, ok := r.(*InternalError); ok {
		*err = ice
		return
	}
	panic(r)
}

// Code returns the internal error code carried by err, or "".
func Code(err error) string {
	var ice *InternalError
	if stderrors.As(err, &ice) {
		return ice.Code
	}
	return ""
}
