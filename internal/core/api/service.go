// Package api exposes the rule engine to the authoring UI over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kidase-app/kidase-rules/internal/core/config"
	"github.com/kidase-app/kidase-rules/internal/core/store"
	"github.com/kidase-app/kidase-rules/internal/liturgy"
	"github.com/kidase-app/kidase-rules/internal/rules"
)

// Service is a thin orchestration layer delegating to the engine, the
// context builder, and the stores.
type Service struct {
	engine        *rules.Engine
	builder       *liturgy.Builder
	rulesStore    *store.RuleStore
	readings      *store.ReadingStore
	presentations *store.PresentationStore
	cfg           *config.Config
	logger        *slog.Logger
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Engine        *rules.Engine
	Builder       *liturgy.Builder
	Rules         *store.RuleStore
	Readings      *store.ReadingStore
	Presentations *store.PresentationStore
	Config        *config.Config
	Logger        *slog.Logger
}

// NewService creates a service instance with its dependencies.
func NewService(deps Deps) (*Service, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if deps.Builder == nil {
		return nil, fmt.Errorf("builder cannot be nil")
	}
	if deps.Rules == nil || deps.Readings == nil || deps.Presentations == nil {
		return nil, fmt.Errorf("stores cannot be nil")
	}
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		engine:        deps.Engine,
		builder:       deps.Builder,
		rulesStore:    deps.Rules,
		readings:      deps.Readings,
		presentations: deps.Presentations,
		cfg:           deps.Config,
		logger:        deps.Logger,
	}, nil
}

// Router builds the HTTP surface.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Post("/validate", s.handleValidateRule)
			r.Get("/{id}", s.handleGetRule)
			r.Put("/{id}", s.handleUpdateRule)
			r.Delete("/{id}", s.handleDeleteRule)
		})

		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/presentations/{id}/slides/visibility", s.handleSlideVisibility)
	})

	return r
}

// contextFor builds the evaluation context for a request-supplied date.
// A zero date means now; the congregation's configured timezone decides
// which liturgical day "now" falls on.
func (s *Service) contextFor(snap liturgy.Snapshot, date string) (*rules.Context, error) {
	if date != "" {
		at, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
		}
		snap.At = at
	}
	return s.builder.Build(snap), nil
}
