package relay

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xvless/edge/transport/duplex"
	"github.com/xvless/edge/transport/vless"
)

// fakeClient is a minimal duplex.Client over two fakeReader/fakeWriter
// pairs, standing in for a ws/xhttp Client in the end-to-end relay test.
type fakeClient struct {
	r           *fakeReader
	w           *fakeWriter
	sig         *duplex.Signal
	readingDone bool
}

func (c *fakeClient) Readable() duplex.ChunkReader { return c.r }
func (c *fakeClient) Writable() duplex.ChunkWriter { return c.w }
func (c *fakeClient) Signal() *duplex.Signal       { return c.sig }
func (c *fakeClient) Close() error                 { c.sig.Fire(); return nil }
func (c *fakeClient) ReadingDone()                 { c.readingDone = true }

func TestRun_PipesClientToRemoteAndBack(t *testing.T) {
	remoteSide, testSide := net.Pipe()
	defer testSide.Close()

	client := &fakeClient{
		r:   &fakeReader{chunks: [][]byte{[]byte("PING")}},
		w:   &fakeWriter{failAfter: -1},
		sig: duplex.NewSignal(),
	}
	req := &vless.Request{Resp: []byte{0x00, 0x00}}

	done := make(chan struct{})
	go func() {
		Run(client, remoteSide, req, PipePump)
		close(done)
	}()

	buf := make([]byte, 4)
	_ = testSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := io.ReadFull(testSide, buf)
	require.NoError(t, err)
	assert.Equal(t, "PING", string(buf[:n]))

	_, err = testSide.Write([]byte("PONG"))
	require.NoError(t, err)
	_ = testSide.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never settled")
	}

	assert.True(t, client.readingDone)
	assert.Equal(t, []byte{0x00, 0x00, 'P', 'O', 'N', 'G'}, client.w.all())
}
