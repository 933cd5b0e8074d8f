// Package watcher implements the best-effort abort watcher of §4.G: once
// a client's abort Signal fires, the watcher waits out a grace period and
// then forcibly closes the dialed remote connection, reclaiming sockets
// whose download pump is stuck reading from a half-open remote that will
// never itself learn the client is gone.
//
// The source design polls the signal every 3000ms because that runtime
// has no native one-shot wait primitive; a Go *duplex.Signal is a real
// channel, so Watch waits on it directly instead of polling. The
// behaviorally significant part - the 3 second grace period after abort,
// before the remote is force-closed - is preserved exactly.
package watcher

import (
	"net"
	"time"

	"github.com/xvless/edge/log"
	"github.com/xvless/edge/transport/duplex"
)

const gracePeriod = 3 * time.Second

// Watch blocks until sig fires, waits gracePeriod, then closes remote.
// Closing is best-effort: an error is logged, never propagated, since by
// the time this fires the client side has already torn down.
func Watch(sig *duplex.Signal, remote net.Conn) {
	<-sig.Done()
	time.Sleep(gracePeriod)
	if err := remote.Close(); err != nil {
		log.Warnln("watcher: close remote: %s", err.Error())
	}
}
