package dialer

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenOn(t *testing.T, host string) (port uint16, accepted chan net.Conn) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	require.NoError(t, err)
	accepted = make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
		ln.Close()
	}()

	_, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	n, err := strconv.Atoi(p)
	require.NoError(t, err)
	return uint16(n), accepted
}

func TestConnectRemote_DirectSucceeds(t *testing.T) {
	port, accepted := listenOn(t, "127.0.0.1")

	conn, err := ConnectRemote(context.Background(), "127.0.0.1", port, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never accepted")
	}
}

func TestConnectRemote_FallsBackToRelay(t *testing.T) {
	// A second loopback address (127.0.0.1/8 all route locally) lets the
	// relay listen on the same port number the direct attempt (against
	// 127.0.0.1, where nothing listens) will refuse.
	port, accepted := listenOn(t, "127.0.0.2")

	conn, err := ConnectRemote(context.Background(), "127.0.0.1", port, []string{"127.0.0.2"})
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("relay listener never accepted")
	}
}

func TestConnectRemote_AllAttemptsFail(t *testing.T) {
	_, err := ConnectRemote(context.Background(), "127.0.0.1", 1, nil)
	assert.Error(t, err)
}
