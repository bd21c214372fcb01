// Package wspb provides helpers for protobuf messages.
package wspb

import (
	"context"

	"github.com/golang/protobuf/proto"
	"golang.org/x/xerrors"

	"github.com/wessendorf/websocket"
)

// Write writes the protobuf message m to c as a binary message and waits
// for it to be flushed.
func Write(ctx context.Context, c *websocket.Conn, m proto.Message) error {
	err := write(ctx, c, m)
	if err != nil {
		return xerrors.Errorf("failed to write protobuf: %w", err)
	}
	return nil
}

func write(ctx context.Context, c *websocket.Conn, m proto.Message) error {
	b, err := proto.Marshal(m)
	if err != nil {
		return xerrors.Errorf("failed to marshal protobuf: %w", err)
	}

	return c.Write(ctx, websocket.MessageBinary, b)
}

// BinaryFunc returns a binary message callback for websocket.HandlerFuncs
// that unmarshals every message into a new T and passes it to fn.
// Messages that fail to unmarshal are passed to onErr when it is not nil.
func BinaryFunc[T any, PT interface {
	*T
	proto.Message
}](fn func(PT), onErr func(error)) func([]byte) {
	return func(msg []byte) {
		m := PT(new(T))
		err := proto.Unmarshal(msg, m)
		if err != nil {
			if onErr != nil {
				onErr(xerrors.Errorf("failed to unmarshal protobuf: %w", err))
			}
			return
		}
		fn(m)
	}
}
