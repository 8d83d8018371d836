package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/dSO/rpc/common"
	"github.com/ValentinKolb/dSO/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/time/rate"
)

var Logger = logger.GetLogger("transport/rpc")

// shutdownTimeout bounds how long Shutdown waits for running requests
const shutdownTimeout = 5 * time.Second

func NewHttpServerTransport() transport.IRPCServerTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	metrics transport.MetricsWriteFunc
	config  common.ServerConfig
	limiter *rate.Limiter

	mu     sync.Mutex
	server *http.Server
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) RegisterMetrics(metrics transport.MetricsWriteFunc) {
	t.metrics = metrics
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	server := &http.Server{
		Addr:              t.config.Endpoint,
		Handler:           t.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	t.mu.Lock()
	t.server = server
	t.mu.Unlock()

	Logger.Infof("Starting HTTP server on %s", t.config.Endpoint)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *httpServerTransport) Shutdown() error {
	t.mu.Lock()
	server := t.server
	t.server = nil
	t.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	Logger.Infof("Stopping HTTP server on %s", t.config.Endpoint)
	return server.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// routes builds the request multiplexer from the current config
func (t *httpServerTransport) routes() http.Handler {
	mux := http.NewServeMux()

	handle := http.HandlerFunc(t.handleRequest)
	if t.config.RateLimit > 0 {
		t.limiter = newLimiter(t.config.RateLimit, t.config.RateBurst)
		handle = limitMiddleware(t.limiter, handle)
	}
	if t.config.LogLevel == "debug" {
		handle = loggerMiddleware(handle)
	}
	mux.HandleFunc("POST /{service}", handle)

	if t.metrics != nil {
		mux.HandleFunc("GET /metrics", t.handleMetrics)
	}
	return mux
}

// handleRequest handles incoming HTTP requests and writes the response to the writer
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	// Read request body
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	// Send the handler
	resp := t.handler(service, body)

	// Write response
	if _, err = w.Write(resp); err != nil {
		Logger.Warningf("Failed to write response for %s: %v", service, err)
	}
}

// handleMetrics writes all registered metrics in Prometheus text format
func (t *httpServerTransport) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	t.metrics(w)
}

// --------------------------------------------------------------------------
// Middleware (rate limit, logging)
// --------------------------------------------------------------------------

// newLimiter creates a token bucket allowing perSecond requests on average.
// A burst below one is raised to one.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
		Logger.Warningf("Rate limit burst is zero or negative, setting to 1")
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// limitMiddleware rejects requests with 429 while the limiter has no tokens
func limitMiddleware(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
