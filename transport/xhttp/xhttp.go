// Package xhttp adapts a single streamed HTTP request/response pair to the
// duplex.Client interface: the request body is the readable side, the
// response body (written and flushed incrementally) is the writable side.
// There is no native abort token for this transport; the Signal returned
// here is instead wired to the request's context, which net/http already
// cancels when the client disconnects - the idiomatic Go stand-in for "the
// HTTP framework provides its own cancellation".
package xhttp

import (
	"errors"
	"io"
	"net/http"

	"github.com/xvless/edge/transport/duplex"
)

// ErrNotFlushable is returned by Serve when the ResponseWriter given to it
// cannot stream (lacks http.Flusher) - this should never happen under the
// standard net/http server.
var ErrNotFlushable = errors.New("xhttp: response writer does not support flushing")

const readChunkSize = 32 * 1024

// Client is a duplex.Client wrapping a single HTTP request/response body
// pair. CloseWrite is a no-op: the HTTP handler's own return ends the
// response, there is no separate half-close signal to send.
type Client struct {
	body    io.ReadCloser
	pending error

	w       http.ResponseWriter
	flusher http.Flusher

	sig *duplex.Signal
	sem *duplex.Semaphore
}

// Serve writes the fixed xhttp response headers (plus optional X-Padding),
// flushes the header frame, and returns a Client ready to relay. bufferKiB
// is the write-direction high-water mark (BUFFER_SIZE).
func Serve(w http.ResponseWriter, r *http.Request, bufferKiB int, padding string) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNotFlushable
	}

	h := w.Header()
	h.Set("X-Accel-Buffering", "no")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "Keep-Alive")
	h.Set("Content-Type", "application/grpc")
	h.Set("User-Agent", "Go-http-client/2.0")
	if padding != "" {
		h.Set("X-Padding", padding)
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sig := duplex.NewSignal()
	go func() {
		select {
		case <-r.Context().Done():
			sig.Fire()
		case <-sig.Done():
		}
	}()

	return &Client{
		body:    r.Body,
		w:       w,
		flusher: flusher,
		sig:     sig,
		sem:     duplex.NewSemaphore(bufferKiB),
	}, nil
}

func (c *Client) Readable() duplex.ChunkReader { return c }
func (c *Client) Writable() duplex.ChunkWriter { return c }
func (c *Client) Signal() *duplex.Signal       { return c.sig }

// ReadChunk reads the next slice of the request body. io.Reader permits a
// final (n>0, err!=nil) read; that trailing error is stashed and returned
// on the following call so a real chunk is never dropped.
func (c *Client) ReadChunk() ([]byte, error) {
	if c.pending != nil {
		err := c.pending
		c.pending = nil
		return nil, err
	}

	buf := make([]byte, readChunkSize)
	n, err := c.body.Read(buf)
	if n > 0 {
		if err != nil {
			c.pending = err
		}
		return buf[:n], nil
	}
	return nil, err
}

// WriteChunk writes b to the response body and flushes immediately -
// xhttp's duplex is really just a streamed HTTP response, so the
// ResponseWriter's own blocking Write already supplies backpressure; the
// semaphore only bounds how much can be in flight if the peer reads
// slowly.
func (c *Client) WriteChunk(b []byte) error {
	c.sem.Acquire(len(b))
	defer c.sem.Release(len(b))

	if _, err := c.w.Write(b); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// CloseWrite is a no-op: the response ends when the handler returns,
// there's nothing to send explicitly.
func (c *Client) CloseWrite() error { return nil }

// Close fires the abort signal and releases the request body. There is no
// separate "response" to close; the handler's return does that.
func (c *Client) Close() error {
	c.sig.Fire()
	return c.body.Close()
}
