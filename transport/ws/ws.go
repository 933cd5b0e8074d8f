// Package ws adapts an inbound WebSocket connection to the duplex.Client
// interface, using gorilla/websocket from the server side (Upgrade +
// accept).
package ws

import (
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xvless/edge/log"
	"github.com/xvless/edge/transport/duplex"
)

// ErrAborted is returned by ReadChunk when the client's Signal fires
// while a read is pending.
var ErrAborted = errors.New("ws: aborted")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is a duplex.Client backed by a *websocket.Conn. It implements
// both ChunkReader and ChunkWriter itself; Readable/Writable just hand
// back the same value under the narrower interface.
type Client struct {
	conn *websocket.Conn
	in   chan []byte

	sig     *duplex.Signal
	readSem *duplex.Semaphore
	writeSem *duplex.Semaphore

	closeOnce sync.Once

	mu          sync.Mutex
	readingDone bool
	writingDone bool
}

// Accept upgrades r to a WebSocket connection and returns a ready-to-relay
// Client. bufferKiB is the per-direction high-water mark (BUFFER_SIZE);
// <= 0 disables bounded queuing.
func Accept(w http.ResponseWriter, r *http.Request, bufferKiB int) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:     conn,
		in:       make(chan []byte, 64),
		sig:      duplex.NewSignal(),
		readSem:  duplex.NewSemaphore(bufferKiB),
		writeSem: duplex.NewSemaphore(bufferKiB),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.in)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// On WS error, the controller errors; on WS close, the
			// controller closes. Either way abort fires.
			c.sig.Fire()
			c.markReadingDone()
			return
		}
		c.readSem.Acquire(len(data))
		c.in <- data
	}
}

func (c *Client) Readable() duplex.ChunkReader { return c }
func (c *Client) Writable() duplex.ChunkWriter { return c }
func (c *Client) Signal() *duplex.Signal       { return c.sig }

// ReadChunk returns the next inbound message payload (binary-preferred;
// text messages are passed through unchanged as bytes), or ErrAborted once
// the client's Signal has fired. A closed socket fires the Signal as well
// as ending the queue, so after a close either ErrAborted or io.EOF is
// returned.
func (c *Client) ReadChunk() ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		c.readSem.Release(len(data))
		return data, nil
	case <-c.sig.Done():
		return nil, ErrAborted
	}
}

// WriteChunk sends b as a single binary WebSocket message. A send failure
// is logged and fires the abort Signal but is not propagated to the
// caller; the pumps observe the abort instead. (xhttp's WriteChunk, by
// contrast, returns its write error.)
func (c *Client) WriteChunk(b []byte) error {
	c.writeSem.Acquire(len(b))
	defer c.writeSem.Release(len(b))

	if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		log.Warnln("ws: write failed: %s", err.Error())
		c.sig.Fire()
		return nil
	}
	return nil
}

// CloseWrite marks the writing half done. Once both halves report done,
// the underlying socket is torn down - cancelling a readable mid-flight
// is unreliable, so both sides must agree the stream is over first.
func (c *Client) CloseWrite() error {
	c.mu.Lock()
	c.writingDone = true
	both := c.readingDone
	c.mu.Unlock()
	if both {
		return c.closeSocket()
	}
	return nil
}

func (c *Client) markReadingDone() {
	c.mu.Lock()
	c.readingDone = true
	both := c.writingDone
	c.mu.Unlock()
	if both {
		_ = c.closeSocket()
	}
}

// ReadingDone lets the relay engine notify the client side explicitly
// once the upload pump (client -> remote) finishes, satisfying
// duplex.ReadingDoneNotifier.
func (c *Client) ReadingDone() {
	c.markReadingDone()
}

// Close forces the socket closed regardless of half-close bookkeeping.
// Idempotent: logs but does not error on a second call.
func (c *Client) Close() error {
	c.sig.Fire()
	return c.closeSocket()
}

func (c *Client) closeSocket() error {
	first := false
	c.closeOnce.Do(func() {
		first = true
		deadline := time.Now().Add(2 * time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		if err := c.conn.Close(); err != nil {
			log.Warnln("ws: close: %s", err.Error())
		}
	})
	if !first {
		log.Debugln("ws: close: socket already closed")
	}
	return nil
}
