package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zombor/receipt-cam/internal/capture"
)

// Camera is the live capture pipeline the web UI drives
type Camera interface {
	Trigger() (string, error)
	Submit(data []byte) (string, error)
	Rotate() int
	Snapshot() capture.Snapshot
	Current() *capture.Capture
	Reset(id string) bool
	Preview() *capture.View
}

// CorrectionStore is the learned rule set exposed over HTTP
type CorrectionStore interface {
	Rules() []string
	Add(rule string) error
	Reload() error
}

// Server handles HTTP requests for the capture UI and the receipt ledger
type Server struct {
	service     *Service
	camera      Camera
	corrections CorrectionStore
	basicAuth   BasicAuth
	mux         *http.ServeMux

	mu         sync.Mutex
	httpServer *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, camera Camera, corrections CorrectionStore, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, camera, corrections, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, camera Camera, corrections CorrectionStore, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:     service,
		camera:      camera,
		corrections: corrections,
		basicAuth:   basicAuth,
		mux:         mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Receipt Cam"`)
			corsError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	// Live capture
	s.mux.HandleFunc("GET /api/preview.jpg", s.requireAuth(s.handlePreview))
	s.mux.HandleFunc("POST /api/capture", s.requireAuth(s.handleCapture))
	s.mux.HandleFunc("POST /api/analyze", s.requireAuth(s.handleAnalyzeUpload))
	s.mux.HandleFunc("POST /api/rotate", s.requireAuth(s.handleRotate))
	s.mux.HandleFunc("GET /api/session/image.jpg", s.requireAuth(s.handleSessionImage))
	s.mux.HandleFunc("GET /api/session", s.requireAuth(s.handleSession))

	// Ledger
	s.mux.HandleFunc("GET /api/receipts/{id}/file", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireAuth(s.handleGetReceipt))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireAuth(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleCommitReceipt))
	s.mux.HandleFunc("GET /api/summary", s.requireAuth(s.handleSummary))

	// Corrections
	s.mux.HandleFunc("POST /api/corrections/reload", s.requireAuth(s.handleReloadCorrections))
	s.mux.HandleFunc("GET /api/corrections", s.requireAuth(s.handleListCorrections))
	s.mux.HandleFunc("POST /api/corrections", s.requireAuth(s.handleAddCorrection))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// Start serves HTTP on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops a started server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
