package wstest

import (
	"net/http"
	"net/http/httptest"

	"github.com/wessendorf/websocket/internal/wsecho"
)

// EchoServer starts an echo server. Close it when done.
func EchoServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(wsecho.Handler))
}
