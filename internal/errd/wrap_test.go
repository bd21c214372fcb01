package errd_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/wessendorf/websocket/internal/errd"
	"github.com/wessendorf/websocket/internal/test/assert"
)

func readHeader(fail bool) (err error) {
	defer errd.Wrap(&err, "failed to read %v header", "frame")

	if fail {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func TestWrap(t *testing.T) {
	t.Parallel()

	assert.Success(t, readHeader(false))

	err := readHeader(true)
	assert.ErrorIs(t, io.ErrUnexpectedEOF, err)
	assert.Equal(t, "error", "failed to read frame header: unexpected EOF", err.Error())
	assert.Equal(t, "%v", "failed to read frame header: unexpected EOF", fmt.Sprintf("%v", err))
	assert.Contains(t, fmt.Sprintf("%+v", err), "wrap_test.go")
}
