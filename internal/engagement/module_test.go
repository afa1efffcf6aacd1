package engagement

import (
	"testing"

	"github.com/gin-gonic/gin"

	"swipelink_backend/internal/events"
	apphttp "swipelink_backend/internal/http"
	"swipelink_backend/platform/config"
	"swipelink_backend/platform/httpkit"
	"swipelink_backend/platform/logger"
	"swipelink_backend/platform/validator"
)

func TestNewModuleWiresDependencies(t *testing.T) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)

	m, err := NewModule(nil, bus, validator.New(), &config.Config{}, log)
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	defer m.SSE().Close()

	if m.Name() != "engagement" {
		t.Fatalf("Name() = %q, want engagement", m.Name())
	}
	if m.Service() == nil {
		t.Fatal("Service() is nil")
	}
	if m.Orchestrator() == nil {
		t.Fatal("Orchestrator() is nil")
	}
}

func TestRegisterRoutesMountsAPISurface(t *testing.T) {
	gin.SetMode(gin.TestMode)

	log := logger.New("test")
	bus := events.NewInMemoryBus(log)

	m, err := NewModule(nil, bus, validator.New(), &config.Config{}, log)
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	defer m.SSE().Close()

	engine := gin.New()
	m.RegisterRoutes(&apphttp.RouterContext{
		Engine:                 engine,
		V1:                     engine.Group("/api/v1"),
		InteractionRateLimiter: httpkit.NewInteractionRateLimiter(log),
	})

	want := map[string]bool{
		"POST /api/v1/links":                             false,
		"POST /api/v1/links/:linkID/share":               false,
		"POST /api/v1/links/:linkID/sessions":            false,
		"POST /api/v1/sessions/:sessionID/interactions":  false,
		"POST /api/v1/sessions/:sessionID/end":           false,
		"GET /api/v1/deals/:dealID":                      false,
		"POST /api/v1/deals/:dealID/showings":            false,
		"POST /api/v1/deals/:dealID/close":               false,
		"PATCH /api/v1/tasks/:taskID":                    false,
		"GET /api/v1/notifications/stream":               false,
	}
	for _, route := range engine.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, seen := range want {
		if !seen {
			t.Errorf("route %s not registered", key)
		}
	}
}
