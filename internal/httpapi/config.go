package httpapi

import "net/http"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// streamTimeout caps how long a /search/stream response may stay open.
// Zero means no additional timeout beyond server/connection timeouts.
var streamTimeout = int64(0) // seconds

// SetStreamTimeoutSeconds sets the stream timeout in seconds (0 disables).
func SetStreamTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	streamTimeout = sec
}

const defaultMaxStreams = 64

// streamSlots bounds concurrently open /search/stream responses.
var streamSlots = make(chan struct{}, defaultMaxStreams)

// SetMaxStreams resizes the stream limit. Call before serving.
func SetMaxStreams(n int) {
	if n <= 0 {
		n = defaultMaxStreams
	}
	streamSlots = make(chan struct{}, n)
}

// trustProxy enables chi's RealIP, which trusts client-supplied
// X-Forwarded-For and X-Real-IP headers.
var trustProxy bool

// SetTrustProxy controls whether forwarding headers set the remote address.
func SetTrustProxy(enabled bool) { trustProxy = enabled }

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

var (
	relayHandler http.Handler
	relayMount   = "/relay"
)

// SetRelay mounts h at path on the API router. A nil handler disables it.
func SetRelay(path string, h http.Handler) {
	relayHandler = h
	if path != "" {
		relayMount = path
	}
}
