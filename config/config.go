// Package config loads Settings from the process environment. It decodes
// a map[string]interface{} assembled from os.Getenv through the
// structure package's tagged decoder, the same "generic map into typed
// struct" idiom the proxy option types elsewhere in this codebase family
// use (there, driven by `proxy:"..."` tags over a parsed config file;
// here, driven by `env:"..."` tags over the process environment).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/xvless/edge/common/structure"
)

// Settings mirrors §3 of the design: proxy identity, feature paths,
// buffering, padding, and relay scheduling knobs.
type Settings struct {
	UUID           string `env:"UUID,omitempty"`
	Proxy          string `env:"PROXY,omitempty"`
	WSPath         string `env:"WS_PATH,omitempty"`
	XHTTPPath      string `env:"XHTTP_PATH,omitempty"`
	DoHQueryPath   string `env:"DOH_QUERY_PATH,omitempty"`
	IPQueryPath    string `env:"IP_QUERY_PATH,omitempty"`
	BufferSize     int    `env:"BUFFER_SIZE,omitempty"`
	XPaddingRange  string `env:"XPADDING_RANGE,omitempty"`
	RelayScheduler string `env:"RELAY_SCHEDULER,omitempty"`
	YieldSize      int    `env:"YIELD_SIZE,omitempty"`
	YieldDelay     int    `env:"YIELD_DELAY,omitempty"`
	UpstreamDoH    string `env:"UPSTREAM_DOH,omitempty"`
	LogLevel       string `env:"LOG_LEVEL,omitempty"`
	TimeZone       string `env:"TIME_ZONE,omitempty"`
}

// Defaults per §6: unset keys inherit these.
var defaults = Settings{
	BufferSize:     128,
	XPaddingRange:  "100-1000",
	RelayScheduler: "pipe",
	YieldSize:      2048,
	YieldDelay:     0,
	UpstreamDoH:    "https://dns.google/dns-query",
	LogLevel:       "none",
}

var envKeys = []string{
	"UUID", "PROXY", "WS_PATH", "XHTTP_PATH", "DOH_QUERY_PATH", "IP_QUERY_PATH",
	"BUFFER_SIZE", "XPADDING_RANGE", "RELAY_SCHEDULER", "YIELD_SIZE", "YIELD_DELAY",
	"UPSTREAM_DOH", "LOG_LEVEL", "TIME_ZONE",
}

var decoder = structure.NewDecoder(structure.Option{TagName: "env", WeaklyTypedInput: true})

// Load reads Settings from the environment, falling back to the §6
// defaults for anything unset, then normalizes paths to end with "/".
func Load() (*Settings, error) {
	raw := map[string]interface{}{}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok {
			raw[key] = v
		}
	}

	s := defaults
	if err := decoder.Decode(raw, &s); err != nil {
		return nil, err
	}

	s.WSPath = normalizePath(s.WSPath)
	s.XHTTPPath = normalizePath(s.XHTTPPath)
	s.DoHQueryPath = normalizePath(s.DoHQueryPath)
	s.IPQueryPath = normalizePath(s.IPQueryPath)

	return &s, nil
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ParseUUID validates the configured UUID string and returns its 16 raw
// bytes. An empty string disables proxying per §3.
func (s *Settings) ParseUUID() ([16]byte, bool, error) {
	var out [16]byte
	if s.UUID == "" {
		return out, false, nil
	}
	id, err := uuid.FromString(s.UUID)
	if err != nil {
		return out, false, err
	}
	copy(out[:], id.Bytes())
	return out, true, nil
}

// ParseRelays splits PROXY on space, comma, CR, or LF, discarding empties.
func (s *Settings) ParseRelays() []string {
	return splitRelays(s.Proxy)
}

func splitRelays(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\r' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ParseXPaddingRange parses "min-max" per §6. Malformed input or "0"
// disables padding (returns ok=false).
func ParseXPaddingRange(raw string) (min, max int, ok bool) {
	if raw == "" || raw == "0" {
		return 0, 0, false
	}
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || a < 1 || a > b {
		return 0, 0, false
	}
	return a, b, true
}
