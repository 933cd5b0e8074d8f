// Package relay drives bytes between a VLESS client and its dialed remote
// once the header has been parsed, using one of two pump strategies
// selected by RELAY_SCHEDULER. Shaped after a two concurrent directions
// joined at the end goroutine pattern, generalized from a fixed
// io.Copy-based relay into the Pump abstraction used here.
package relay

import (
	"errors"
	"io"
	"runtime"
	"time"

	"github.com/xvless/edge/transport/duplex"
)

// ErrAborted is the sentinel a Pump returns when its read failed because
// the governing Signal fired, distinguishing a deliberate abort from a
// genuine transport error for logging purposes.
var ErrAborted = errors.New("relay: aborted")

// Pump copies from src to dst, first writing any already-buffered first
// bytes (the VLESS request's trailing payload, or its response prefix).
// sig governs both cancellation (YieldPump checks it between slices) and
// error classification (see classify): a nil Signal never fires, for a
// src that truly has no abort token of its own.
type Pump func(src duplex.ChunkReader, sig *duplex.Signal, dst duplex.ChunkWriter, first []byte) error

// PipePump forwards chunks as they arrive, relying on dst.WriteChunk's own
// blocking/backpressure behavior - the Go analogue of a native pipe
// operator, since a blocking channel send or socket write already
// provides the backpressure a JS runtime needs an explicit pipe for.
func PipePump(src duplex.ChunkReader, sig *duplex.Signal, dst duplex.ChunkWriter, first []byte) error {
	if len(first) > 0 {
		if err := dst.WriteChunk(first); err != nil {
			_ = dst.CloseWrite()
			return classify(sig, err)
		}
	}

	for {
		chunk, err := src.ReadChunk()
		if len(chunk) > 0 {
			if werr := dst.WriteChunk(chunk); werr != nil {
				_ = dst.CloseWrite()
				return classify(sig, werr)
			}
		}
		if err != nil {
			return finish(sig, dst, err)
		}
	}
}

// YieldPump forwards chunks in slices bounded by sliceSize bytes, yielding
// to the scheduler between slices - delay > 0 sleeps that long (mirroring
// a source runtime's setTimeout(n)); delay == 0 calls runtime.Gosched
// (mirroring setTimeout(0), a pure scheduler yield with no real delay).
func YieldPump(sliceSize int, delay time.Duration) Pump {
	return func(src duplex.ChunkReader, sig *duplex.Signal, dst duplex.ChunkWriter, first []byte) error {
		if len(first) > 0 {
			if err := dst.WriteChunk(first); err != nil {
				_ = dst.CloseWrite()
				return classify(sig, err)
			}
		}

		for {
			if sig.Fired() {
				_ = dst.CloseWrite()
				return ErrAborted
			}

			written := 0
			for written < sliceSize {
				chunk, err := src.ReadChunk()
				if len(chunk) > 0 {
					if werr := dst.WriteChunk(chunk); werr != nil {
						_ = dst.CloseWrite()
						return classify(sig, werr)
					}
					written += len(chunk)
				}
				if err != nil {
					return finish(sig, dst, err)
				}
			}

			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-sig.Done():
					_ = dst.CloseWrite()
					return ErrAborted
				}
			} else {
				runtime.Gosched()
			}
		}
	}
}

func finish(sig *duplex.Signal, dst duplex.ChunkWriter, err error) error {
	if errors.Is(err, io.EOF) {
		return dst.CloseWrite()
	}
	_ = dst.CloseWrite()
	return classify(sig, err)
}

// classify reclassifies a read/write failure as ErrAborted whenever sig has
// fired, regardless of the transport-specific sentinel each ChunkReader/
// ChunkWriter implementation happens to return for "abort observed"
// (ws.ErrAborted, a net.Conn closed-by-watcher error, ...). Checking sig's
// own state uniformly - rather than requiring every transport to wrap its
// errors in relay.ErrAborted - is what lets logOutcome's "aborted is
// swallowed" policy (§7) hold regardless of which transport or direction
// produced the error.
func classify(sig *duplex.Signal, err error) error {
	if sig.Fired() {
		return ErrAborted
	}
	return err
}

// SchedulerFor resolves the RELAY_SCHEDULER setting to a concrete Pump.
// Anything other than "yield" - including unset or unrecognized values -
// falls back to pipe.
func SchedulerFor(name string, yieldSize int, yieldDelay time.Duration) Pump {
	if name == "yield" {
		return YieldPump(yieldSize, yieldDelay)
	}
	return PipePump
}
