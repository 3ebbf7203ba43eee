package httpapi

import (
	"StandMatch/internal/claims"
	"StandMatch/internal/core/ports"
	"StandMatch/internal/leads"
	"StandMatch/internal/matching"
	"StandMatch/internal/obs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Server wires the HTTP surface to the core services.
type Server struct {
	resolver  *matching.Resolver
	claims    *claims.Workflow
	router    *leads.Router
	profiles  ports.ProfileRepository
	leadStore ports.LeadRepository
	leadRate  *rate.Limiter
	log       zerolog.Logger
}

// NewServer creates the HTTP server. leadRatePerMin throttles public
// lead submission; everything else is unthrottled.
func NewServer(
	resolver *matching.Resolver,
	claimWorkflow *claims.Workflow,
	leadRouter *leads.Router,
	profiles ports.ProfileRepository,
	leadStore ports.LeadRepository,
	leadRatePerMin int,
	baseLogger *zerolog.Logger,
) *Server {
	return &Server{
		resolver:  resolver,
		claims:    claimWorkflow,
		router:    leadRouter,
		profiles:  profiles,
		leadStore: leadStore,
		leadRate:  rate.NewLimiter(rate.Limit(float64(leadRatePerMin)/60.0), leadRatePerMin),
		log:       baseLogger.With().Str("component", "http_server").Logger(),
	}
}

// Routes builds the router with the shared middleware stack.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return obs.Instrument(next) })

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/import/batch", s.handleImportBatch)

		r.Post("/profiles", s.handleRegisterProfile)
		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Post("/profiles/{id}/claims", s.handleStartClaim)
		r.Post("/claims/{id}/verify", s.handleVerifyClaim)

		r.Group(func(r chi.Router) {
			r.Use(s.throttleLeads)
			r.Post("/leads", s.handleSubmitLead)
		})
		r.Get("/leads/{id}", s.handleGetLead)
		r.Post("/leads/{id}/actions", s.handleLeadAction)
	})

	return r
}
