package http

import (
	"net/http"

	"github.com/mlevkov/clipdock/internal/adapter/http/middleware"
	"github.com/mlevkov/clipdock/static"
)

// Server wires the handlers onto a ServeMux behind the middleware chain.
type Server struct {
	mux      *http.ServeMux
	handlers *Handlers
	chain    http.Handler
}

func NewServer(h *Handlers) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		handlers: h,
	}
	s.registerRoutes()
	s.registerStatic()
	s.chain = RequestID(middleware.SecurityHeaders(Recover(s.mux)))
	return s
}

func (s *Server) registerRoutes() {
	h := s.handlers
	auth := h.auth

	withKey := func(fn http.HandlerFunc) http.Handler {
		return RequireAPIKey(auth, fn)
	}
	withAdmin := func(fn http.HandlerFunc) http.Handler {
		return RequireAdmin(auth, fn)
	}

	s.mux.Handle("POST /api/video/extract", withKey(h.Extract))
	s.mux.Handle("POST /api/video/download", withKey(h.Download))
	s.mux.Handle("GET /api/video/status/{jobId}", withKey(h.Status))
	s.mux.Handle("DELETE /api/video/job/{jobId}", withKey(h.CancelOrDelete))
	s.mux.Handle("GET /api/video/events/{jobId}", withKey(h.Events))
	s.mux.Handle("GET /api/video/platforms", withKey(h.Platforms))

	s.mux.HandleFunc("GET /downloads/{name}", h.ServeDownload)

	s.mux.HandleFunc("POST /api/auth/login", h.Login)
	s.mux.Handle("GET /api/admin/stats", withAdmin(h.AdminStats))
	s.mux.Handle("DELETE /api/admin/jobs", withAdmin(h.AdminPurgeJobs))

	s.mux.HandleFunc("GET /api/docs", h.Docs)
	s.mux.HandleFunc("GET /health", h.Health)
	s.mux.HandleFunc("GET /health/detailed", h.HealthDetailed)
	s.mux.HandleFunc("GET /health/ready", h.HealthReady)
	s.mux.HandleFunc("GET /health/live", h.HealthLive)
}

func (s *Server) registerStatic() {
	s.mux.Handle("GET /{$}", http.FileServer(http.FS(static.FS)))
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static.FS))))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.chain.ServeHTTP(w, r)
}
