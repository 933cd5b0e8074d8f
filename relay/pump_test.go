package relay

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xvless/edge/transport/duplex"
)

type fakeReader struct {
	mu     sync.Mutex
	chunks [][]byte
	pos    int
	err    error
}

func (f *fakeReader) ReadChunk() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos < len(f.chunks) {
		c := f.chunks[f.pos]
		f.pos++
		return c, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, io.EOF
}

type fakeWriter struct {
	mu         sync.Mutex
	written    [][]byte
	closeCalls int
	failAfter  int // -1 disables
}

func (f *fakeWriter) WriteChunk(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter == 0 {
		return io.ErrClosedPipe
	}
	if f.failAfter > 0 {
		f.failAfter--
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeWriter) CloseWrite() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeWriter) all() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, c := range f.written {
		out = append(out, c...)
	}
	return out
}

func TestPipePump_ForwardsFirstThenChunksThenClosesOnEOF(t *testing.T) {
	src := &fakeReader{chunks: [][]byte{[]byte("foo"), []byte("bar")}}
	dst := &fakeWriter{failAfter: -1}

	err := PipePump(src, duplex.NewSignal(), dst, []byte("FIRST"))
	require.NoError(t, err)
	assert.Equal(t, "FIRSTfoobar", string(dst.all()))
	assert.Equal(t, 1, dst.closeCalls)
}

func TestPipePump_PropagatesWriteError(t *testing.T) {
	src := &fakeReader{chunks: [][]byte{[]byte("foo")}}
	dst := &fakeWriter{failAfter: 0}

	err := PipePump(src, duplex.NewSignal(), dst, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, dst.closeCalls)
}

func TestPipePump_NilSignalNeverAborts(t *testing.T) {
	src := &fakeReader{chunks: [][]byte{[]byte("x")}}
	dst := &fakeWriter{failAfter: -1}

	err := PipePump(src, nil, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", string(dst.all()))
}

// A fired Signal must reclassify whatever transport-specific error the
// read/write side surfaces (here a plain io.ErrClosedPipe, standing in for
// ws.ErrAborted or a watcher-triggered net.Conn close) as ErrAborted, so
// logOutcome's "aborted is suppressed" policy holds no matter which
// sentinel the underlying transport happened to return.
func TestPipePump_ClassifiesReadErrorAsAbortedWhenSignalFired(t *testing.T) {
	sig := duplex.NewSignal()
	sig.Fire()
	src := &fakeReader{err: io.ErrClosedPipe}
	dst := &fakeWriter{failAfter: -1}

	err := PipePump(src, sig, dst, nil)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 1, dst.closeCalls)
}

func TestPipePump_ClassifiesWriteErrorAsAbortedWhenSignalFired(t *testing.T) {
	sig := duplex.NewSignal()
	sig.Fire()
	src := &fakeReader{chunks: [][]byte{[]byte("foo")}}
	dst := &fakeWriter{failAfter: 0}

	err := PipePump(src, sig, dst, nil)
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 1, dst.closeCalls)
}

func TestYieldPump_ForwardsInSlicesAndClosesOnEOF(t *testing.T) {
	src := &fakeReader{chunks: [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}}
	dst := &fakeWriter{failAfter: -1}

	pump := YieldPump(2, 0)
	err := pump(src, duplex.NewSignal(), dst, nil)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(dst.all()))
	assert.Equal(t, 1, dst.closeCalls)
}

func TestYieldPump_AbortsWhenSignalFires(t *testing.T) {
	sig := duplex.NewSignal()
	sig.Fire()
	src := &fakeReader{chunks: [][]byte{[]byte("ab")}}
	dst := &fakeWriter{failAfter: -1}

	pump := YieldPump(2048, time.Second)
	err := pump(src, sig, dst, nil)
	assert.ErrorIs(t, err, ErrAborted)
}
