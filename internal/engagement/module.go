// Package engagement provides the engagement scoring bounded context module.
// This file defines the module that encapsulates all engagement setup and
// route registration.
package engagement

import (
	"fmt"

	"swipelink_backend/internal/engagement/automation"
	"swipelink_backend/internal/engagement/handler"
	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/internal/engagement/service"
	"swipelink_backend/internal/events"
	apphttp "swipelink_backend/internal/http"
	"swipelink_backend/internal/notification/sse"
	"swipelink_backend/platform/config"
	"swipelink_backend/platform/logger"
	"swipelink_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the engagement bounded context module implementing http.Module.
type Module struct {
	handler      *handler.Handler
	svc          *service.Service
	orchestrator *service.Orchestrator
	sse          *sse.Service
}

// NewModule creates and initializes the engagement module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg *config.Config, log *logger.Logger) (*Module, error) {
	repo := repository.New(pool)

	// Automation rules: default bindings unless an operator supplies a YAML override.
	rulesCfg := automation.DefaultConfig()
	if path := cfg.GetRulesFile(); path != "" {
		loaded, err := automation.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("load automation rules from %s: %w", path, err)
		}
		rulesCfg = loaded
	}
	engine := automation.NewEngine(rulesCfg)

	sseService := sse.New()
	orchestrator := service.NewOrchestrator(repo, engine, eventBus, sseService, log)
	svc := service.NewService(repo, orchestrator, eventBus, sseService, log)
	h := handler.New(svc, orchestrator, val)

	return &Module{
		handler:      h,
		svc:          svc,
		orchestrator: orchestrator,
		sse:          sseService,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "engagement"
}

// Service returns the engagement service for external use.
func (m *Module) Service() *service.Service {
	return m.svc
}

// Orchestrator returns the evaluation orchestrator for external use.
func (m *Module) Orchestrator() *service.Orchestrator {
	return m.orchestrator
}

// SSE returns the notification stream service so main can close it on shutdown.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// RegisterRoutes mounts engagement routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	linksGroup := ctx.V1.Group("/links")
	m.handler.RegisterLinkRoutes(linksGroup)

	// Interaction ingestion fires several times per second while a client
	// swipes, so it gets the more generous limiter.
	sessionsGroup := ctx.V1.Group("/sessions")
	sessionsGroup.Use(ctx.InteractionRateLimiter.RateLimit())
	m.handler.RegisterSessionRoutes(sessionsGroup)

	dealsGroup := ctx.V1.Group("/deals")
	m.handler.RegisterDealRoutes(dealsGroup)

	tasksGroup := ctx.V1.Group("/tasks")
	m.handler.RegisterTaskRoutes(tasksGroup)

	ctx.V1.GET("/notifications/stream", m.sse.Handler(agentIDFromQuery))
}

// agentIDFromQuery resolves the subscribing agent from the agentId query
// parameter. The dashboard is a trusted first-party client.
func agentIDFromQuery(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("agentId"))
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
