package receipt

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
)

// apiKeyHeader carries the shared secret on every request
const apiKeyHeader = "x-api-key"

// Server handles HTTP requests for the OCR gateway
type Server struct {
	service *Service
	apiKey  string
	mux     *http.ServeMux
	handler http.Handler
	httpSrv *http.Server
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, apiKey string) *Server {
	return NewServerWithMux(service, apiKey, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, apiKey string, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		apiKey:  apiKey,
		mux:     mux,
	}
	s.registerRoutes()
	s.handler = s.accessLog(s.corsMiddleware(s.requireAPIKey(s.mux)))
	return s
}

// authenticate compares the x-api-key header with the shared secret
func (s *Server) authenticate(r *http.Request) bool {
	given := r.Header.Get(apiKeyHeader)
	if given == "" || s.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.apiKey)) == 1
}

// requireAPIKey rejects every request without the shared secret
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			slog.Warn("Invalid API key", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr,
				"key_present", r.Header.Get(apiKeyHeader) != "")
			requestsTotal.WithLabelValues(KindUnauthorized.String()).Inc()
			writeJSON(w, http.StatusForbidden, errorResponse{Error: msgForbidden})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers and answers preflight requests before authentication
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// accessLog logs every request with its final status
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		slog.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/ticket-mistral-ocr", s.handleTicketOCR)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.handler,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler, running the full middleware chain
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
