package wsecho_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wessendorf/websocket"
	"github.com/wessendorf/websocket/internal/test/assert"
	"github.com/wessendorf/websocket/internal/test/wstest"
	"github.com/wessendorf/websocket/internal/wsecho"
)

func TestGin(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/echo", func(ginCtx *gin.Context) {
		err := wsecho.Serve(ginCtx.Writer, ginCtx.Request)
		if err != nil {
			t.Error(err)
		}
	})

	s := httptest.NewServer(r)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	cl, err := websocket.NewClient(wstest.URL(s)+"/echo", nil)
	assert.Success(t, err)

	msgs := make(chan string, 1)
	closed := make(chan websocket.StatusCode, 1)
	cl.SetHandler(websocket.HandlerFuncs{
		Text: func(msg string) {
			msgs <- msg
		},
		Close: func(code websocket.StatusCode, reason string) {
			closed <- code
		},
	})

	err = cl.Connect(ctx)
	assert.Success(t, err)

	err = cl.SendText("hello")
	assert.Success(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "msg", "hello", msg)
	case <-ctx.Done():
		t.Fatal(ctx.Err())
	}

	err = cl.Close()
	assert.Success(t, err)

	select {
	case code := <-closed:
		assert.Equal(t, "close code", websocket.StatusNormalClosure, code)
	case <-ctx.Done():
		t.Fatal(ctx.Err())
	}
}
