package relay

import (
	"errors"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/xvless/edge/log"
	"github.com/xvless/edge/transport/duplex"
	"github.com/xvless/edge/transport/vless"
)

// Run wires up the two relay directions per §4.F/§4.G of the design:
//
//	upload   = pump(client.Readable(), client.Signal(), remote, req.Data)
//	download = pump(remote,            client.Signal(), client.Writable(), req.Resp)
//
// The remote TCP connection has no abort token of its own - it is the
// client's Signal that governs both directions. The download pump is given
// it too, for two reasons: under the yield scheduler it lets the download
// side notice a client abort on its own next slice boundary instead of
// always waiting out the abort watcher's grace period; and uniformly, it
// is what lets a force-close performed by the watcher (relay/watcher) be
// recognized as an abort rather than logged as a genuine I/O error (see
// pump.go's classify). The watcher remains necessary regardless: the pipe
// scheduler's read from remote blocks on the socket itself and only
// unblocks once something actually closes it.
//
// errgroup is used purely to join the two directions; each direction's
// own outcome is captured into its own local (goroutine-private until
// Wait returns, so no race) rather than relying on errgroup's
// first-error-wins semantics, since both outcomes need independent
// logging.
func Run(client duplex.Client, remote net.Conn, req *vless.Request, scheduler Pump) {
	rc := &remoteConn{conn: remote}

	var uploadErr, downloadErr error
	var g errgroup.Group

	g.Go(func() error {
		uploadErr = scheduler(client.Readable(), client.Signal(), rc, req.Data)
		if notifier, ok := client.(duplex.ReadingDoneNotifier); ok {
			notifier.ReadingDone()
		}
		return nil
	})
	g.Go(func() error {
		downloadErr = scheduler(rc, client.Signal(), client.Writable(), req.Resp)
		return nil
	})
	_ = g.Wait()

	logOutcome("download", downloadErr)
	logOutcome("upload", uploadErr)
}

func logOutcome(direction string, err error) {
	if err == nil || errors.Is(err, ErrAborted) {
		return
	}
	log.Errorln("relay: %s: %s", direction, err.Error())
}
