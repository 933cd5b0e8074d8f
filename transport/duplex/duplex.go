// Package duplex defines the uniform interface the relay engine consumes
// regardless of whether a client arrived over WebSocket or xhttp, plus the
// byte-buffer primitives Concat (which the VLESS header codec uses to
// accumulate chunks) and ReadAtLeast.
package duplex

import "errors"

// ErrShortRead is returned by ReadAtLeast when the source exhausts before
// n bytes have arrived.
var ErrShortRead = errors.New("duplex: short read")

// ChunkReader is a finite, non-restartable source of byte chunks. It is
// satisfied by the WebSocket adapter's inbound message queue and by the
// xhttp adapter's request-body reader.
type ChunkReader interface {
	// ReadChunk returns the next chunk, or (nil, io.EOF) once exhausted.
	ReadChunk() ([]byte, error)
}

// ChunkWriter is a backpressured sink for byte chunks. CloseWrite denotes
// end-of-stream to the remote peer and is idempotent.
type ChunkWriter interface {
	WriteChunk([]byte) error
	CloseWrite() error
}

// ReadingDoneNotifier is implemented by clients that want to observe the
// client-to-remote pump finishing, regardless of outcome.
type ReadingDoneNotifier interface {
	ReadingDone()
}

// Client is the interface the relay engine is polymorphic over: a
// unified {readable, writable, signal, close} duplex.
type Client interface {
	Readable() ChunkReader
	Writable() ChunkWriter
	Signal() *Signal
	Close() error
}

// Concat joins chunks into one contiguous buffer. Concat() returns an
// empty (non-nil) slice; Concat(x) returns x unchanged.
func Concat(chunks ...[]byte) []byte {
	switch len(chunks) {
	case 0:
		return []byte{}
	case 1:
		return chunks[0]
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// ReadAtLeast pulls chunks from r until the accumulated length is >= n or
// the stream ends. Excess bytes beyond n are included in the result; the
// caller owns slicing. Returns ErrShortRead if the stream ends first.
func ReadAtLeast(r ChunkReader, n int) ([]byte, error) {
	var buf []byte
	for len(buf) < n {
		chunk, err := r.ReadChunk()
		if len(chunk) > 0 {
			buf = Concat(buf, chunk)
		}
		if err != nil {
			if len(buf) >= n {
				break
			}
			return nil, ErrShortRead
		}
	}
	return buf, nil
}
