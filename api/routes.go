package api

import (
	"net/http"

	"github.com/garnizeh/clinicmatch/internal/config"
	"github.com/garnizeh/clinicmatch/internal/schema"
	"github.com/garnizeh/clinicmatch/pkg/repository"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes are built from. Generator may be nil,
// in which case the AI endpoints answer 503.
type Deps struct {
	Repo      *repository.Repository
	Engine    SwipeRecorder
	Generator TextGenerator
	Schemas   *schema.Loader
	DB        Pinger
}

func SetupRoutes(cfg *config.Config, version, buildTime string, deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware)

	tokens := NewTokenIssuer(cfg.JWTSecret, cfg.TokenDuration)

	// Create handlers
	systemHandler := NewSystemHandler(deps.DB)
	authHandler := NewAuthHandler(deps.Repo.Profile, tokens)
	profileHandler := NewProfileHandler(deps.Repo.Profile, deps.Schemas, tokens)
	feedHandler := NewFeedHandler(deps.Repo.Profile)
	swipeHandler := NewSwipeHandler(deps.Engine)
	matchHandler := NewMatchHandler(deps.Repo.Match, deps.Repo.Message)
	aiHandler := NewAIHandler(deps.Generator, deps.Repo.Profile)
	adminHandler := NewAdminHandler(deps.Repo.Profile)

	// mux skips middleware on method mismatch, which is where preflight requests land
	r.MethodNotAllowedHandler = CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}))

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/v1/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/v1/profiles", profileHandler.Upsert).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	apiV1.HandleFunc("/profiles/{id}", profileHandler.Get).Methods("GET")
	apiV1.HandleFunc("/feed/{userId}", feedHandler.Feed).Methods("GET")
	apiV1.HandleFunc("/swipe", swipeHandler.Swipe).Methods("POST")
	apiV1.HandleFunc("/matches/{userId}", matchHandler.ListMatches).Methods("GET")
	apiV1.HandleFunc("/messages/{matchId}", matchHandler.ListMessages).Methods("GET")
	apiV1.HandleFunc("/messages", matchHandler.PostMessage).Methods("POST")

	// AI endpoints, throttled per profile
	aiV1 := apiV1.PathPrefix("/ai").Subrouter()
	aiV1.Use(RateLimitMiddleware(NewRateLimiter(cfg.RateLimit.AIPerMinute, cfg.RateLimit.Burst)))
	aiV1.HandleFunc("/generate-bio", aiHandler.GenerateBio).Methods("POST")
	aiV1.HandleFunc("/generate-questions", aiHandler.GenerateQuestions).Methods("POST")

	// Admin endpoints
	adminV1 := apiV1.PathPrefix("/admin").Subrouter()
	adminV1.Use(AdminOnly)
	adminV1.HandleFunc("/profiles", adminHandler.ListProfiles).Methods("GET")
	adminV1.HandleFunc("/profiles/{id}/block", adminHandler.Block).Methods("POST")
	adminV1.HandleFunc("/profiles/{id}/unblock", adminHandler.Unblock).Methods("POST")

	return r
}
