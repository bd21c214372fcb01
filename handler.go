package websocket

// Handler receives the events of a connection.
// All methods are called from the connection's reader goroutine, one at a
// time. OnOpen is called once before any message. OnClose is always the
// last call; when the connection failed it is preceded by OnError.
type Handler interface {
	OnOpen()
	OnTextMessage(msg string)
	// OnBinaryMessage receives a message the handler may keep.
	OnBinaryMessage(msg []byte)
	OnClose(code StatusCode, reason string)
	OnError(err error)
}

// HandlerAdapter implements Handler with no-ops.
// Embed it to implement only the events you care about.
type HandlerAdapter struct{}

var _ Handler = HandlerAdapter{}

func (HandlerAdapter) OnOpen()                    {}
func (HandlerAdapter) OnTextMessage(string)       {}
func (HandlerAdapter) OnBinaryMessage([]byte)     {}
func (HandlerAdapter) OnClose(StatusCode, string) {}
func (HandlerAdapter) OnError(error)              {}

// HandlerFuncs implements Handler with optional function fields.
// Nil fields are skipped.
type HandlerFuncs struct {
	Open   func()
	Text   func(msg string)
	Binary func(msg []byte)
	Close  func(code StatusCode, reason string)
	Error  func(err error)
}

var _ Handler = HandlerFuncs{}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnTextMessage(msg string) {
	if h.Text != nil {
		h.Text(msg)
	}
}

func (h HandlerFuncs) OnBinaryMessage(msg []byte) {
	if h.Binary != nil {
		h.Binary(msg)
	}
}

func (h HandlerFuncs) OnClose(code StatusCode, reason string) {
	if h.Close != nil {
		h.Close(code, reason)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}
