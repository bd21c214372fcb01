// Package websocket is a small WebSocket client.
//
// It implements the client side of RFC 6455: the opening handshake, the
// frame codec, the connection state machine and the close handshake.
// The transport is any io.ReadWriteCloser; Client dials plain TCP or TLS
// for ws:// and wss:// addresses.
//
// See https://tools.ietf.org/html/rfc6455
//
// Use Client for the callback based API:
//
//	c, err := websocket.NewClient("ws://localhost:9999/echo", nil)
//	if err != nil {
//		// ...
//	}
//	c.SetHandler(websocket.HandlerFuncs{
//		Text: func(msg string) {
//			log.Printf("received %q", msg)
//			c.Close()
//		},
//	})
//	err = c.Connect(ctx)
//	if err != nil {
//		// ...
//	}
//	err = c.SendText("hello")
//
// Every callback runs on the connection's reader goroutine. Callbacks may
// send and close but must not block for long as no further frames are
// read while they run.
package websocket
