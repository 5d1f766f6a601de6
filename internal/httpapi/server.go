package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"libreplexity/internal/inference"
	"libreplexity/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	StartSearch(ctx context.Context, query string) (string, error)
	CancelSearch()
	SearchView() types.RunView
	WatchSearch(ctx context.Context) <-chan types.RunView
	SetQuery(q string)
	Suggest(ctx context.Context, q string) ([]string, error)
	ListModels() types.ModelsResponse
	ModelStatus() types.EngineStatus
	WatchModelStatus(ctx context.Context) <-chan types.EngineStatus
	SwitchModel(req types.SwitchRequest) (types.SwitchResponse, error)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip (behind a trusted proxy), recoverer
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/search", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req types.SearchRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			q := strings.TrimSpace(req.Query)
			if q == "" {
				writeJSONError(w, http.StatusBadRequest, "query is required")
				return
			}
			id, err := svc.StartSearch(serverBaseCtx, q)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			logEvent(r, LevelInfo, "search started", "run", id)
			writeJSON(w, http.StatusAccepted, types.SearchStarted{ID: id, Query: q})
		})
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.SearchView())
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			svc.CancelSearch()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Put("/query", func(w http.ResponseWriter, r *http.Request) {
			var req types.SearchRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			svc.SetQuery(req.Query)
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
			streamNDJSON(w, r, svc.WatchSearch, func(v types.RunView) bool {
				return !v.Fetching && v.ID != ""
			})
		})
	})

	r.Get("/autocomplete", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		res, err := svc.Suggest(r.Context(), q)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if res == nil {
			res = []string{}
		}
		writeJSON(w, http.StatusOK, types.AutocompleteResponse{Query: q, Suggestions: res})
	})

	r.Route("/models", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.ListModels())
		})
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.ModelStatus())
		})
		r.Get("/status/stream", func(w http.ResponseWriter, r *http.Request) {
			streamNDJSON(w, r, svc.WatchModelStatus, settledStatus)
		})
		r.Post("/switch", func(w http.ResponseWriter, r *http.Request) {
			var req types.SwitchRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if req.ID == "" && req.Size == "" {
				writeJSONError(w, http.StatusBadRequest, "id or size is required")
				return
			}
			res, err := svc.SwitchModel(req)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			logEvent(r, LevelInfo, "model switch", "model", res.ModelID)
			writeJSON(w, http.StatusAccepted, res)
		})
	})

	if relayHandler != nil {
		r.Mount(relayMount, relayHandler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// streamNDJSON writes one NDJSON frame per value from watch until done
// reports true for a frame or the client goes away.
func streamNDJSON[T any](w http.ResponseWriter, r *http.Request, watch func(context.Context) <-chan T, done func(T) bool) {
	select {
	case streamSlots <- struct{}{}:
		defer func() { <-streamSlots }()
	default:
		IncrementBackpressure("streams")
		writeServiceError(w, r, fmt.Errorf("too many open streams: %w", ErrTooBusy))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	writer := io.Writer(w)
	lvl := requestLogLevel(r)
	if lvl >= LevelDebug {
		writer = io.MultiWriter(w, &loggingLineWriter{})
	}
	start := time.Now()
	logEvent(r, LevelInfo, "stream start")

	// Join server base context with request context so shutdown ends streams too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if streamTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(streamTimeout)*time.Second)
		defer tcancel()
	}

	enc := json.NewEncoder(writer)
	frames := 0
	for v := range watch(ctx) {
		if err := enc.Encode(v); err != nil {
			break
		}
		frames++
		if flush != nil {
			flush()
		}
		if done(v) {
			break
		}
	}
	logEvent(r, LevelInfo, "stream end", "frames", itoa(frames), "dur", time.Since(start).String())
}

// settledStatus reports whether a load has finished one way or the other.
func settledStatus(st types.EngineStatus) bool {
	if st.Loading {
		return false
	}
	return st.State == string(inference.StateReady) || st.State == string(inference.StateError)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logEvent(nil, LevelError, "encode response", "err", err.Error())
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	logEvent(r, LevelInfo, "request failed", "status", itoa(status), "err", err.Error())
	writeJSONError(w, status, err.Error())
}

// logEvent writes a request-scoped line through zlog, or the standard
// logger when none is installed. kv holds alternating keys and values.
func logEvent(r *http.Request, lvl LogLevel, msg string, kv ...string) {
	if r != nil && requestLogLevel(r) < lvl {
		return
	}
	if zlog != nil {
		z := zlog.Info()
		if lvl == LevelError {
			z = zlog.Error()
		}
		if r != nil {
			z = z.Str("path", r.URL.Path)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
		}
		for i := 0; i+1 < len(kv); i += 2 {
			z = z.Str(kv[i], kv[i+1])
		}
		z.Msg(msg)
		return
	}
	log.Printf("%s %s", msg, strings.Join(kv, " "))
}
