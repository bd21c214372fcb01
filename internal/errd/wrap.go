// Package errd annotates errors on the way out of a function.
package errd

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Wrap annotates *err with the formatted message and the caller's frame
// when *err is non nil. Use it with defer and a named error return:
//
//	defer errd.Wrap(&err, "failed to read frame header")
//
// The result prints as "msg: err"; %+v adds the frame.
func Wrap(err *error, f string, v ...interface{}) {
	if *err == nil {
		return
	}
	*err = &frameError{
		msg:   fmt.Sprintf(f, v...),
		err:   *err,
		frame: xerrors.Caller(1),
	}
}

type frameError struct {
	msg   string
	err   error
	frame xerrors.Frame
}

func (e *frameError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *frameError) Unwrap() error {
	return e.err
}

func (e *frameError) Format(s fmt.State, v rune) {
	xerrors.FormatError(e, s, v)
}

func (e *frameError) FormatError(p xerrors.Printer) error {
	p.Print(e.msg)
	if p.Detail() {
		e.frame.Format(p)
	}
	return e.err
}
