package xsync

import (
	"errors"
	"testing"

	"github.com/wessendorf/websocket/internal/test/assert"
)

func TestGoRecover(t *testing.T) {
	t.Parallel()

	errs := Go(func() error {
		panic("anmol")
	})

	err := <-errs
	assert.Contains(t, err, "anmol")
}

func TestGoResult(t *testing.T) {
	t.Parallel()

	exp := errors.New("boom")
	err := <-Go(func() error {
		return exp
	})
	assert.ErrorIs(t, exp, err)
}
