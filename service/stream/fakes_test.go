package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("use of closed connection")

// fakeConn delivers scripted payloads. Closing msgs simulates the peer
// closing the connection.
type fakeConn struct {
	msgs chan []byte

	mu      sync.Mutex
	written [][]byte

	closeOnce sync.Once
	done      chan struct{}
}

func newFakeConn(payloads ...string) *fakeConn {
	c := &fakeConn{
		msgs: make(chan []byte, len(payloads)+1),
		done: make(chan struct{}),
	}
	for _, p := range payloads {
		c.msgs <- []byte(p)
	}
	return c
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-c.msgs:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, msg, nil
	case <-c.done:
		return 0, nil, errConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// hangup simulates the peer closing the connection once queued payloads are read.
func (c *fakeConn) hangup() {
	close(c.msgs)
}

func (c *fakeConn) registrations() []subscribeRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]subscribeRequest, 0, len(c.written))
	for _, data := range c.written {
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err == nil {
			out = append(out, req)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

type dialResult struct {
	conn *fakeConn
	err  error
}

// fakeDialer hands out scripted dial results in order and blocks when it
// runs out, which stands in for a slow handshake.
type fakeDialer struct {
	results chan dialResult

	mu    sync.Mutex
	dials int
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{results: make(chan dialResult, 16)}
}

func (d *fakeDialer) push(conn *fakeConn) {
	d.results <- dialResult{conn: conn}
}

func (d *fakeDialer) fail(err error) {
	d.results <- dialResult{err: err}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	select {
	case r := <-d.results:
		if r.err != nil {
			return nil, r.err
		}
		return r.conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// batchRecorder is a BatchHandler that remembers every batch.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]TransactionChangeRecord
}

func (r *batchRecorder) handle(ctx context.Context, records []TransactionChangeRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, records)
}

func (r *batchRecorder) snapshot() [][]TransactionChangeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]TransactionChangeRecord, len(r.batches))
	copy(out, r.batches)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
