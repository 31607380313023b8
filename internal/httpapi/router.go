// Package httpapi is the HTTP boundary: routing, auth enforcement, request
// decoding, and error-to-status mapping. All domain behavior lives in the
// service and engine packages underneath.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/recommend"
	"github.com/synapselabs/synapse-api/internal/report"
	"github.com/synapselabs/synapse-api/internal/service/syncservice"
	"github.com/synapselabs/synapse-api/internal/store"
)

// SyncService is the push/pull surface the handlers call.
type SyncService interface {
	Push(ctx context.Context, userID string, req syncservice.PushRequest) (*syncservice.PushResponse, error)
	Pull(ctx context.Context, userID string, checkpoint *time.Time) (*syncservice.PullResponse, error)
}

// Recommender ranks related notes for a target.
type Recommender interface {
	Recommend(ctx context.Context, userID, noteID string, k int) (*recommend.Response, error)
}

// Reporter builds weekly reports.
type Reporter interface {
	Weekly(ctx context.Context, userID, weekKey string, regenerate bool) (*report.Response, error)
}

// UserStore is the account surface the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u store.User) error
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Sync      SyncService
	Recommend Recommender
	Reports   Reporter
	Users     UserStore
	Tokens    *auth.Tokens

	MaxBatchBytes     int64 // request body cap on push
	RecommendDefaultK int   // k when the query omits it
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// Routes builds the router: open auth endpoints plus the bearer-protected
// sync, recommendation, and report groups.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.Tokens))

		r.Post("/sync/push", s.handlePush)
		r.Post("/sync/pull", s.handlePull)
		r.Get("/recommend/{note_id}", s.handleRecommend)
		r.Get("/reports/weekly", s.handleWeeklyReport)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
