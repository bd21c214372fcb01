package websocket_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/wessendorf/websocket"
	"github.com/wessendorf/websocket/internal/test/assert"
	"github.com/wessendorf/websocket/internal/test/wstest"
)

func TestClient(t *testing.T) {
	t.Parallel()

	t.Run("echoText", func(t *testing.T) {
		t.Parallel()

		s := wstest.EchoServer()
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		cl, err := websocket.NewClient(wstest.URL(s), nil)
		assert.Success(t, err)
		assert.Equal(t, "state", websocket.StateClosed, cl.ReadyState())

		rec := newRecorder()
		cl.SetHandler(rec)

		err = cl.Connect(ctx)
		assert.Success(t, err)
		assert.Equal(t, "event", event{typ: "open"}, rec.next(t))
		assert.Equal(t, "state", websocket.StateOpen, cl.ReadyState())

		err = cl.SendText("Hello")
		assert.Success(t, err)
		assert.Equal(t, "event", event{typ: "text", msg: "Hello"}, rec.next(t))

		err = cl.Close()
		assert.Success(t, err)
		rec.expectClose(t, websocket.StatusNormalClosure, "")

		err = cl.Wait(ctx)
		assert.Success(t, err)
		assert.Equal(t, "state", websocket.StateClosed, cl.ReadyState())
	})

	t.Run("echoBinary", func(t *testing.T) {
		t.Parallel()

		s := wstest.EchoServer()
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		cl, err := websocket.NewClient(wstest.URL(s), nil)
		assert.Success(t, err)

		rec := newRecorder()
		cl.SetHandler(rec)

		err = cl.Connect(ctx)
		assert.Success(t, err)
		rec.next(t)

		// "BVB" in UTF-16LE.
		p := []byte{0x42, 0x00, 0x56, 0x00, 0x42, 0x00}
		err = cl.SendBinary(p)
		assert.Success(t, err)
		assert.Equal(t, "event", event{typ: "binary", msg: string(p)}, rec.next(t))

		err = cl.CloseWithStatus(websocket.StatusGoingAway, "done")
		assert.Success(t, err)
		rec.expectClose(t, websocket.StatusGoingAway, "")
		assert.Success(t, cl.Wait(ctx))
	})

	t.Run("closeFromHandler", func(t *testing.T) {
		t.Parallel()

		s := wstest.EchoServer()
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		cl, err := websocket.NewClient(wstest.URL(s), nil)
		assert.Success(t, err)

		closed := make(chan websocket.StatusCode, 1)
		cl.SetHandler(websocket.HandlerFuncs{
			Open: func() {
				cl.SendText("ping")
			},
			Text: func(msg string) {
				cl.Close()
			},
			Close: func(code websocket.StatusCode, reason string) {
				closed <- code
			},
		})

		err = cl.Connect(ctx)
		assert.Success(t, err)

		select {
		case code := <-closed:
			assert.Equal(t, "close code", websocket.StatusNormalClosure, code)
		case <-ctx.Done():
			t.Fatal(ctx.Err())
		}
	})

	t.Run("reconnect", func(t *testing.T) {
		t.Parallel()

		s := wstest.EchoServer()
		defer s.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		cl, err := websocket.NewClient(wstest.URL(s), nil)
		assert.Success(t, err)

		for i := 0; i < 2; i++ {
			err = cl.Connect(ctx)
			assert.Success(t, err)

			err = cl.Connect(ctx)
			assert.ErrorIs(t, websocket.ErrInvalidState, err)

			err = cl.Close()
			assert.Success(t, err)
			assert.Success(t, cl.Wait(ctx))
		}
	})

	t.Run("closedPort", func(t *testing.T) {
		t.Parallel()

		l, err := net.Listen("tcp", "127.0.0.1:0")
		assert.Success(t, err)
		addr := l.Addr().String()
		assert.Success(t, l.Close())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		cl, err := websocket.NewClient("ws://"+addr, nil)
		assert.Success(t, err)

		rec := newRecorder()
		cl.SetHandler(rec)

		err = cl.Connect(ctx)
		assert.Error(t, err)
		assert.Equal(t, "state", websocket.StateClosed, cl.ReadyState())

		e := rec.next(t)
		assert.Equal(t, "event type", "error", e.typ)
		rec.expectClose(t, websocket.StatusAbnormalClosure, "")

		err = cl.SendText("nope")
		assert.ErrorIs(t, websocket.ErrInvalidState, err)
	})

	t.Run("noConn", func(t *testing.T) {
		t.Parallel()

		cl, err := websocket.NewClient("wss://example.com/feed", nil)
		assert.Success(t, err)
		assert.Equal(t, "port", 443, cl.Address().Port)
		assert.Equal(t, "conn", true, cl.Conn() == nil)

		err = cl.SendText("x")
		assert.ErrorIs(t, websocket.ErrInvalidState, err)
		assert.Success(t, cl.Close())
		assert.Success(t, cl.Wait(context.Background()))
	})

	t.Run("badAddress", func(t *testing.T) {
		t.Parallel()

		_, err := websocket.NewClient("http://example.com", nil)
		assert.Error(t, err)
	})
}
