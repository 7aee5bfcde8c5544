// Package dashboard serves the COVID-19 dashboard over HTTP: an embedded
// single-page UI plus JSON and PNG endpoints backed by the pipeline.
package dashboard

import (
	"embed"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/covidboard/internal/pipeline"
)

//go:embed public/index.html
var publicFS embed.FS

// Chart dimensions used when the request does not specify them.
const (
	DefaultChartWidth  = 900
	DefaultChartHeight = 420
)

// Server routes dashboard requests to a pipeline.
type Server struct {
	pipe   *pipeline.Pipeline
	router *mux.Router
}

// New creates a Server with all routes registered.
func New(pipe *pipeline.Pipeline) *Server {
	s := &Server{pipe: pipe, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(recoverMiddleware, securityHeaders, requestLogger)

	s.router.HandleFunc("/", s.handleIndex()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/entities", s.handleEntities()).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", s.handleDashboard()).Methods(http.MethodGet)
	api.HandleFunc("/chart.png", s.handleChart()).Methods(http.MethodGet)
	api.HandleFunc("/cache/invalidate", s.handleInvalidate()).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeNotice(w, http.StatusNotFound, "not found")
	})
}
