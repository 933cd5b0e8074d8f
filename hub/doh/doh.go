// Package doh forwards DNS-over-HTTPS queries to an upstream resolver.
// This node is only a boundary: it decodes just enough of the inbound
// application/dns-message body (via miekg/dns) to log the question name,
// then relays the raw bytes upstream untouched. Resolution itself - and
// any caching, filtering, or rewriting - is out of scope, same as the
// teacher's own dns package stops at the resolver boundary and defers to
// an upstream client for the actual lookup.
package doh

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"time"

	"github.com/miekg/dns"

	"github.com/xvless/edge/log"
)

const contentType = "application/dns-message"

// Handler returns an http.HandlerFunc that proxies both GET (?dns=<base64url
// wire message>) and POST (raw wire message body) DoH requests to upstream.
func Handler(upstream string) http.HandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := readQuery(w, r)
		if !ok {
			return
		}

		logQuestion(body)

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, upstream, bytes.NewReader(body))
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", contentType)

		resp, err := client.Do(req)
		if err != nil {
			log.Warnln("doh: upstream request failed: %s", err.Error())
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Warnln("doh: copying upstream response: %s", err.Error())
		}
	}
}

func readQuery(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	switch r.Method {
	case http.MethodGet:
		encoded := r.URL.Query().Get("dns")
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return nil, false
		}
		return raw, true
	case http.MethodPost:
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return nil, false
		}
		return raw, true
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
}

func logQuestion(wire []byte) {
	var msg dns.Msg
	if err := msg.Unpack(wire); err != nil || len(msg.Question) == 0 {
		return
	}
	log.Debugln("doh: forwarding query for %s", msg.Question[0].Name)
}
