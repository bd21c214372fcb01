package websocket

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"golang.org/x/time/rate"

	"github.com/wessendorf/websocket/internal/errd"
)

// connWriter owns the write half of the stream. Frames are queued by any
// goroutine and written in order by a single goroutine, so frames are
// never interleaved on the wire.
type connWriter struct {
	c       *Conn
	bw      *bufio.Writer
	limiter *rate.Limiter

	mu          sync.Mutex
	q           *queue.Queue
	closeQueued bool
	closeSent   CloseError

	wake          chan struct{}
	closeDone     chan struct{}
	closeDoneOnce sync.Once
	done          chan struct{}
}

// outFrame is a queued frame. errc, when set, receives the write result.
type outFrame struct {
	opcode  opcode
	payload []byte
	errc    chan<- error
}

func (cw *connWriter) init(c *Conn) {
	cw.c = c
	cw.limiter = c.opts.sendLimiter()
	cw.q = queue.New()
	cw.wake = make(chan struct{}, 1)
	cw.closeDone = make(chan struct{})
	cw.done = make(chan struct{})
}

// enqueue queues a data, ping or pong frame.
func (cw *connWriter) enqueue(op opcode, p []byte, errc chan<- error) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	st := cw.c.state.Load()
	if cw.closeQueued || st != StateOpen {
		return &StateError{Op: "send " + op.String() + " frame", State: st}
	}

	cw.q.Add(&outFrame{
		opcode:  op,
		payload: p,
		errc:    errc,
	})
	cw.signal()
	return nil
}

// write queues a frame and waits for it to be written.
func (cw *connWriter) write(ctx context.Context, op opcode, p []byte) error {
	errc := make(chan error, 1)
	err := cw.enqueue(op, p, errc)
	if err != nil {
		return err
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queueClose queues the close frame for ce unless one was queued already.
// It returns the status of the close frame that is actually queued, a
// channel closed once it was flushed and whether this call queued it.
// No frame is accepted after the close frame.
func (cw *connWriter) queueClose(ce CloseError) (CloseError, <-chan struct{}, bool) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closeQueued {
		return cw.closeSent, cw.closeDone, false
	}
	cw.closeQueued = true

	p, err := ce.bytes()
	if err != nil {
		cw.c.log.Debug("failed to marshal close frame", "err", err)
		ce = CloseError{Code: StatusInternalError}
		p, _ = ce.bytes()
	}
	cw.closeSent = ce

	cw.q.Add(&outFrame{
		opcode:  opClose,
		payload: p,
	})
	cw.signal()
	return ce, cw.closeDone, true
}

func (cw *connWriter) signal() {
	select {
	case cw.wake <- struct{}{}:
	default:
	}
}

func (cw *connWriter) pop() (*outFrame, bool) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.q.Length() == 0 {
		return nil, false
	}
	f := cw.q.Remove().(*outFrame)
	return f, cw.q.Length() > 0
}

func (cw *connWriter) loop() {
	defer close(cw.done)
	defer cw.drain()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-cw.c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-cw.c.closed:
			return
		case <-cw.wake:
		}

		for {
			f, more := cw.pop()
			if f == nil {
				break
			}

			err := cw.writeFrame(ctx, f, !more)
			if f.errc != nil {
				f.errc <- err
			}
			if err != nil {
				cw.c.close(CloseError{Code: StatusAbnormalClosure}, err)
				return
			}

			if f.opcode == opClose {
				cw.closeDoneOnce.Do(func() {
					close(cw.closeDone)
				})
				return
			}
		}
	}
}

// drain fails every frame still queued once the writer stops.
func (cw *connWriter) drain() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.closeQueued = true
	for cw.q.Length() > 0 {
		f := cw.q.Remove().(*outFrame)
		if f.errc != nil {
			f.errc <- &StateError{Op: "send " + f.opcode.String() + " frame", State: StateClosed}
		}
	}
	cw.closeDoneOnce.Do(func() {
		close(cw.closeDone)
	})
}

// writeFrame masks and writes f as a single final frame.
// The buffer is flushed when flush is set or f is a control frame.
func (cw *connWriter) writeFrame(ctx context.Context, f *outFrame, flush bool) (err error) {
	defer errd.Wrap(&err, "failed to write %v frame", f.opcode)

	if cw.limiter != nil && !f.opcode.controlOp() {
		err = cw.limiter.Wait(ctx)
		if err != nil {
			return err
		}
	}

	h := header{
		fin:    true,
		opcode: f.opcode,
		masked: true,
	}
	err = binary.Read(cw.c.opts.rand, binary.LittleEndian, &h.maskKey)
	if err != nil {
		return fmt.Errorf("failed to generate masking key: %w", err)
	}

	b, err := encodeFrame(h, f.payload)
	if err != nil {
		return err
	}

	_, err = cw.bw.Write(b)
	if err != nil {
		return err
	}

	if flush || f.opcode.controlOp() {
		err = cw.bw.Flush()
		if err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}
	return nil
}
