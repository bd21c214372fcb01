// Package bpool pools the buffers used to reassemble fragmented messages.
package bpool

import (
	"bytes"
	"sync"
)

// MaxPooled is the largest buffer capacity kept for reuse. A single huge
// message must not pin its buffer for the life of the process.
const MaxPooled = 64 << 10

var pool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// Get returns an empty buffer.
func Get() *bytes.Buffer {
	return pool.Get().(*bytes.Buffer)
}

// Put returns b to the pool unless it grew beyond MaxPooled.
func Put(b *bytes.Buffer) {
	if b.Cap() > MaxPooled {
		return
	}
	b.Reset()
	pool.Put(b)
}
