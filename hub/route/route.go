// Package route builds the HTTP ingress dispatcher (§4.H): it routes
// WebSocket upgrades to WS_PATH, streamed POSTs to XHTTP_PATH, DoH queries
// to DOH_QUERY_PATH, and a small set of GET JSON collaborator endpoints,
// falling through to a deliberately mislabeled 404.
//
// Shape: a chi.Router built once at startup, go-chi/cors for permissive
// CORS, go-chi/render for JSON bodies, pointed at this node's own
// handlers rather than a proxy/rule/provider admin API.
package route

import (
	"context"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/gofrs/uuid"

	"github.com/xvless/edge/component/dialer"
	"github.com/xvless/edge/config"
	"github.com/xvless/edge/hub/doh"
	"github.com/xvless/edge/log"
	"github.com/xvless/edge/relay"
	"github.com/xvless/edge/relay/watcher"
	"github.com/xvless/edge/transport/duplex"
	"github.com/xvless/edge/transport/vless"
	"github.com/xvless/edge/transport/ws"
	"github.com/xvless/edge/transport/xhttp"
)

// NewRouter builds the top-level handler per the dispatch table in §4.H.
// An unset or unparsable UUID disables proxying entirely: every route
// degrades to the help responder.
func NewRouter(settings *config.Settings) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	id, enabled, err := settings.ParseUUID()
	if err != nil {
		log.Errorln("route: invalid UUID configured: %s", err.Error())
		enabled = false
	}

	if !enabled {
		r.NotFound(helpHandler)
		return r
	}

	// §6 matches each feature path by suffix against the request path
	// (trailing-slash normalized on the configured side), not by an exact
	// route - a request arriving behind an arbitrary prefix (a reverse
	// proxy mount point, a CDN path rewrite) must still reach the feature
	// it ends in. chi's own route tree only matches exact/prefix
	// patterns, so dispatch is done by hand behind a single wildcard.
	r.HandleFunc("/*", dispatch(settings, id))
	return r
}

// dispatch implements the §4.H routing table by request method and path
// suffix. The reason phrase on the fallback is literally "Bad Request"
// paired with a 404 status code - mismatched by design, not a bug to fix;
// net/http's normal response writer always pairs a status with its
// canonical text, so the only way to reproduce the mismatch on the wire
// is to write the status line by hand (see badRequestHandler).
func dispatch(settings *config.Settings, id [16]byte) http.HandlerFunc {
	wsH := wsHandler(settings, id)
	xhttpGetH := configTemplateHandler(settings)
	xhttpPostH := xhttpHandler(settings, id)
	dohH := doh.Handler(settings.UpstreamDoH)

	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if settings.WSPath != "" && strings.HasSuffix(path, settings.WSPath) {
			if r.Method == http.MethodGet {
				wsH(w, r)
				return
			}
		}
		if settings.XHTTPPath != "" && strings.HasSuffix(path, settings.XHTTPPath) {
			switch r.Method {
			case http.MethodGet:
				xhttpGetH(w, r)
				return
			case http.MethodPost:
				xhttpPostH(w, r)
				return
			}
		}
		if settings.DoHQueryPath != "" && strings.HasSuffix(path, settings.DoHQueryPath) {
			switch r.Method {
			case http.MethodGet, http.MethodPost:
				dohH(w, r)
				return
			}
		}
		if settings.IPQueryPath != "" && strings.HasSuffix(path, settings.IPQueryPath) {
			if r.Method == http.MethodGet {
				ipQueryHandler(w, r)
				return
			}
		}

		badRequestHandler(w, r)
	}
}

func wsHandler(settings *config.Settings, id [16]byte) http.HandlerFunc {
	template := configTemplateHandler(settings)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uuid") != "" {
			template(w, r)
			return
		}
		client, err := ws.Accept(w, r, settings.BufferSize)
		if err != nil {
			log.Warnln("route: ws upgrade failed: %s", err.Error())
			return
		}
		handleClient(client, id, settings)
	}
}

// configTemplateHandler is the "GET with ?uuid=<UUID> on a feature path"
// collaborator (§4.H): pure JSON formatting of the connection parameters
// a client needs, no state, no validation beyond the UUID matching what
// is configured.
func configTemplateHandler(settings *config.Settings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uuid") != settings.UUID {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		render.JSON(w, r, render.M{
			"uuid":       settings.UUID,
			"ws_path":    settings.WSPath,
			"xhttp_path": settings.XHTTPPath,
		})
	}
}

func xhttpHandler(settings *config.Settings, id [16]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		padding := ""
		if min, max, ok := config.ParseXPaddingRange(settings.XPaddingRange); ok {
			padding = randomPadding(min, max)
		}
		client, err := xhttp.Serve(w, r, settings.BufferSize, padding)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		handleClient(client, id, settings)
	}
}

// handleClient parses the VLESS header, dials the destination, and runs
// the relay - the same sequence for either transport once a duplex.Client
// exists.
func handleClient(client duplex.Client, id [16]byte, settings *config.Settings) {
	req, err := vless.ParseRequest(client.Readable(), id)
	if err != nil {
		log.Errorln("route: header: %s", err.Error())
		_ = client.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 17*time.Second)
	defer cancel()
	remote, err := dialer.ConnectRemote(ctx, req.Hostname, req.Port, settings.ParseRelays())
	if err != nil {
		log.Errorln("route: dial %s:%d: %s", req.Hostname, req.Port, err.Error())
		_ = client.Close()
		return
	}

	go watcher.Watch(client.Signal(), remote)

	scheduler := relay.SchedulerFor(settings.RelayScheduler, settings.YieldSize, time.Duration(settings.YieldDelay)*time.Millisecond)
	relay.Run(client, remote, req, scheduler)
}

func ipQueryHandler(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	render.JSON(w, r, render.M{"ip": host})
}

// helpHandler answers every request when no UUID is configured, with a
// freshly generated example UUID and a random feature-path suggestion -
// there is no proxy identity to route on, so there is nothing to dispatch.
func helpHandler(w http.ResponseWriter, r *http.Request) {
	example, err := uuid.NewV4()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, render.M{
		"message":      "no UUID configured",
		"example_uuid": example.String(),
		"example_path": "/" + randomBase36(8) + "/",
	})
}

func badRequestHandler(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Bad Request"))
		return
	}

	conn, bufrw, err := hj.Hijack()
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Bad Request"))
		return
	}
	defer conn.Close()

	const body = "Bad Request"
	_, _ = bufrw.WriteString("HTTP/1.1 404 Bad Request\r\n")
	_, _ = bufrw.WriteString("Content-Type: text/plain\r\n")
	_, _ = bufrw.WriteString("Connection: close\r\n")
	_, _ = bufrw.WriteString("Content-Length: ")
	_, _ = bufrw.WriteString(strconv.Itoa(len(body)))
	_, _ = bufrw.WriteString("\r\n\r\n")
	_, _ = bufrw.WriteString(body)
	_ = bufrw.Flush()
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return string(out)
}

func randomPadding(min, max int) string {
	n := min
	if max > min {
		n = min + rand.Intn(max-min+1)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = '0'
	}
	return string(out)
}
