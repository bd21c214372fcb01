// Package wsjson provides helpers for JSON messages.
package wsjson

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/wessendorf/websocket"
)

// Write writes the JSON encoding of v to c as a text message and waits
// for it to be flushed.
func Write(ctx context.Context, c *websocket.Conn, v interface{}) error {
	err := write(ctx, c, v)
	if err != nil {
		return xerrors.Errorf("failed to write json: %w", err)
	}
	return nil
}

func write(ctx context.Context, c *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("failed to encode json: %w", err)
	}

	return c.Write(ctx, websocket.MessageText, b)
}

// TextFunc returns a text message callback for websocket.HandlerFuncs
// that decodes every message into a new T and passes it to fn.
// Messages that fail to decode are passed to onErr when it is not nil.
func TextFunc[T any](fn func(T), onErr func(error)) func(string) {
	return func(msg string) {
		var v T
		err := json.Unmarshal([]byte(msg), &v)
		if err != nil {
			if onErr != nil {
				onErr(xerrors.Errorf("failed to decode json: %w", err))
			}
			return
		}
		fn(v)
	}
}
