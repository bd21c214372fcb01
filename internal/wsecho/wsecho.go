// Package wsecho is a WebSocket echo server used by tests and the
// wsecho command.
package wsecho

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wessendorf/websocket/internal/errd"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 32 << 10,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler serves Serve over HTTP and drops its error.
func Handler(w http.ResponseWriter, r *http.Request) {
	_ = Serve(w, r)
}

// Serve upgrades the request and echoes every message back with the same
// type until the peer closes the connection.
// The peer's close frame is echoed with its status code.
//
// A normal close by the peer is not an error.
func Serve(w http.ResponseWriter, r *http.Request) (err error) {
	defer errd.Wrap(&err, "echo server failed")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	return loop(c)
}

func loop(c *websocket.Conn) error {
	for {
		typ, p, err := c.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil
			}
			return err
		}

		err = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err != nil {
			return err
		}
		err = c.WriteMessage(typ, p)
		if err != nil {
			return err
		}
	}
}
