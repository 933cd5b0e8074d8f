// Command edge runs the VLESS proxy edge node: it loads Settings from the
// environment, builds the ingress dispatch router, and serves it over
// HTTP/2 cleartext (h2c) so the xhttp transport can use a single
// long-lived stream per request without requiring TLS at this hop (TLS is
// expected to terminate in front of this process, e.g. at a CDN or
// reverse proxy).
package main

import (
	"net/http"
	"os"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/xvless/edge/config"
	"github.com/xvless/edge/hub/route"
	"github.com/xvless/edge/log"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(log.Infoln)); err != nil {
		log.Warnln("automaxprocs: %s", err.Error())
	}

	settings, err := config.Load()
	if err != nil {
		log.Errorln("config: %s", err.Error())
		os.Exit(1)
	}
	log.SetLevel(log.ParseLevel(settings.LogLevel))

	addr := listenAddr()
	handler := route.NewRouter(settings)
	server := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}

	log.Infoln("edge: listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorln("edge: server: %s", err.Error())
		os.Exit(1)
	}
}

func listenAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}
