package relay

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var relayRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "libreplexity",
		Subsystem: "relay",
		Name:      "requests_total",
		Help:      "Relay requests by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(relayRequestsTotal)
}

// Options configures a Handler.
type Options struct {
	// HTTP performs upstream requests. Defaults to a client with Timeout.
	HTTP    *http.Client
	Timeout time.Duration
	// RatePerSec and Burst size the per-IP token bucket. RatePerSec <= 0
	// disables limiting.
	RatePerSec   float64
	Burst        int
	MaxBodyBytes int64
	Logger       *zerolog.Logger
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Handler serves the relay protocol.
type Handler struct {
	client  *http.Client
	maxBody int64
	limits  *ipLimiter
	log     zerolog.Logger
	proxied bool
}

// NewHandler returns a relay Handler.
func NewHandler(opts Options) *Handler {
	h := &Handler{client: opts.HTTP, maxBody: opts.MaxBodyBytes, log: zerolog.Nop(), proxied: opts.TrustProxy}
	if h.client == nil {
		h.client = &http.Client{Timeout: opts.Timeout}
	}
	if h.maxBody <= 0 {
		h.maxBody = 1 << 20
	}
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limits = newIPLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	if opts.Logger != nil {
		h.log = opts.Logger.With().Str("component", "relay").Logger()
	}
	return h
}

// Router mounts the handler at "/" behind preflight handling.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	if h.proxied {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(*http.Request, string) bool { return true },
		AllowedMethods:  []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowedHeaders:  []string{"Content-Type"},
	}))
	r.Handle("/", h)
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		relayRequestsTotal.WithLabelValues("method_not_allowed").Inc()
		writeText(w, http.StatusMethodNotAllowed, "This worker only supports POST requests")
		return
	}
	if h.limits != nil && !h.limits.allow(clientIP(r)) {
		relayRequestsTotal.WithLabelValues("rate_limited").Inc()
		writeText(w, http.StatusTooManyRequests, "Too many requests")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		relayRequestsTotal.WithLabelValues("bad_request").Inc()
		writeText(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.URL == "" {
		relayRequestsTotal.WithLabelValues("bad_request").Inc()
		writeText(w, http.StatusBadRequest, "Please provide a URL in the request body")
		return
	}

	start := time.Now()
	up, err := perform(r.Context(), h.client, req)
	if err != nil {
		relayRequestsTotal.WithLabelValues("upstream_error").Inc()
		h.log.Warn().Err(err).Str("url", req.URL).Msg("relay upstream failed")
		writeText(w, http.StatusBadGateway, err.Error())
		return
	}
	h.log.Debug().Str("url", req.URL).Int("status", up.status).Dur("took", time.Since(start)).Msg("relayed")
	relayRequestsTotal.WithLabelValues("ok").Inc()

	hdr := w.Header()
	for k, vs := range up.header {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	// the body is re-sent decoded
	hdr.Del("Content-Length")
	hdr.Del("Content-Encoding")
	hdr.Del("Transfer-Encoding")
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" {
		origin = "*"
	}
	hdr.Set("Access-Control-Allow-Origin", origin)
	hdr.Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "content-type")
	hdr.Set(StatusHeader, strconv.Itoa(up.status))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(up.body))
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const bucketIdle = 10 * time.Minute

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{limit: limit, burst: burst, buckets: make(map[string]*bucket), swept: time.Now()}
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.swept) > bucketIdle {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > bucketIdle {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}
