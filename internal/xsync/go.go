// Package xsync has goroutine helpers for tests and examples.
package xsync

import (
	"fmt"
)

// Go runs fn in a new goroutine and sends its result on the returned
// channel. A panic in fn is recovered and reported as an error.
func Go(fn func() error) <-chan error {
	errs := make(chan error, 1)
	go func() {
		defer func() {
			r := recover()
			if r != nil {
				select {
				case errs <- fmt.Errorf("panic in go fn: %v", r):
				default:
				}
			}
		}()
		errs <- fn()
	}()
	return errs
}
