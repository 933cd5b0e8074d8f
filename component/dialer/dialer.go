// Package dialer resolves a VLESS request's destination to a live TCP
// connection: a timed direct connect, falling back to a single randomly
// chosen relay on failure. Wraps net.Dialer.DialContext with a
// context-bound timeout rather than hand-rolling a connect/timer race -
// net.Dialer already races the connect against ctx's deadline internally,
// so there is nothing left for this package to reinvent.
package dialer

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/xvless/edge/log"
)

// ErrAllAttemptsFailed is returned once both the direct connect and the
// relay fallback (if any relays were configured) have failed.
var ErrAllAttemptsFailed = errors.New("dialer: all attempts failed")

const connectTimeout = 8 * time.Second

// ConnectRemote dials host:port directly; on failure, and only if relays
// is non-empty, it dials a single randomly chosen relay at the same port
// instead. Either attempt is bounded by connectTimeout.
func ConnectRemote(ctx context.Context, host string, port uint16, relays []string) (net.Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	if conn, err := dialTimeout(ctx, addr); err == nil {
		return conn, nil
	} else {
		log.Debugln("dialer: direct connect to %s failed: %s", addr, err.Error())
	}

	if len(relays) == 0 {
		return nil, ErrAllAttemptsFailed
	}

	relay := relays[rand.Intn(len(relays))]
	relayAddr := net.JoinHostPort(relay, strconv.Itoa(int(port)))
	conn, err := dialTimeout(ctx, relayAddr)
	if err != nil {
		log.Debugln("dialer: relay connect to %s failed: %s", relayAddr, err.Error())
		return nil, ErrAllAttemptsFailed
	}
	return conn, nil
}

func dialTimeout(ctx context.Context, addr string) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	var d net.Dialer
	return d.DialContext(dctx, "tcp", addr)
}
