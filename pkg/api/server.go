// Package api exposes recommendations, robustness evaluations, accounts and
// history over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/mimir-aip/cropwise/pkg/auth"
	"github.com/mimir-aip/cropwise/pkg/evaluation"
	"github.com/mimir-aip/cropwise/pkg/logger"
	"github.com/mimir-aip/cropwise/pkg/models"
	"github.com/mimir-aip/cropwise/pkg/prediction"
	"github.com/mimir-aip/cropwise/pkg/weather"
)

// ModelLister describes the loaded classifiers
type ModelLister interface {
	Names() []string
	PrimaryName() string
	Len() int
}

// HistoryStore lists recorded entries and reports database health
type HistoryStore interface {
	ListByUser(ctx context.Context, userID string, kind models.HistoryKind, limit int) ([]models.HistoryEntry, error)
	Ping(ctx context.Context) error
}

// HistoryRecorder queues history without blocking the response
type HistoryRecorder interface {
	Record(userID string, kind models.HistoryKind, input, result any)
}

// Dependencies are the services behind the HTTP surface
type Dependencies struct {
	Runner    *evaluation.Runner
	Predictor *prediction.Service
	Weather   weather.Provider
	Models    ModelLister
	Auth      *auth.Manager
	History   HistoryStore
	Recorder  HistoryRecorder
}

// Options configures the HTTP layer
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server routes HTTP requests to the services
type Server struct {
	router *mux.Router
	deps   Dependencies
	opts   Options
	log    zerolog.Logger
}

// NewServer creates the router and registers every route
func NewServer(deps Dependencies, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		opts:   opts,
		log:    logger.Component("http"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in CORS handling
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

func (s *Server) setupRoutes() {
	s.router.Use(s.recoveryMiddleware, s.loggingMiddleware, s.metricsMiddleware)
	if s.opts.RequestTimeout > 0 {
		s.router.Use(timeoutMiddleware(s.opts.RequestTimeout))
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ready", s.handleReady).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := s.router.PathPrefix("/api").Subrouter()

	v1.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	v1.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	v1.HandleFunc("/weather", s.handleWeather).Methods("GET")
	v1.HandleFunc("/predict/crop", s.handlePredictCrop).Methods("POST")
	v1.HandleFunc("/models", s.handleListModels).Methods("GET")

	v1.HandleFunc("/evaluate/noise", s.handleEvaluateNoise).Methods("POST")
	v1.HandleFunc("/evaluate/noise/levels", s.handleEvaluateNoiseLevels).Methods("POST")
	v1.HandleFunc("/evaluate/missing", s.handleEvaluateMissing).Methods("POST")
	v1.HandleFunc("/evaluate/agreement", s.handleEvaluateAgreement).Methods("POST")
	v1.HandleFunc("/evaluate/agreement/stability", s.handleEvaluateAgreementStability).Methods("POST")
	v1.HandleFunc("/evaluate/full", s.handleEvaluateFull).Methods("POST")

	v1.HandleFunc("/history", s.handleHistory).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Models == nil || s.deps.Models.Len() == 0 {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": "no models loaded"})
		return
	}
	if s.deps.History != nil {
		if err := s.deps.History.Ping(r.Context()); err != nil {
			writeJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"models":  s.deps.Models.Names(),
		"primary": s.deps.Models.PrimaryName(),
	})
}
