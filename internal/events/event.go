// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"swipelink_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Link Domain Events
// =============================================================================

// LinkCreated is published when an agent creates a shareable property link.
type LinkCreated struct {
	BaseEvent
	LinkID        uuid.UUID `json:"linkId"`
	DealID        uuid.UUID `json:"dealId"`
	AgentID       uuid.UUID `json:"agentId"`
	Name          string    `json:"name"`
	PropertyCount int       `json:"propertyCount"`
}

func (e LinkCreated) EventName() string { return "links.link.created" }

// LinkShared is published when the agent records that the link went out to
// the client.
type LinkShared struct {
	BaseEvent
	LinkID  uuid.UUID `json:"linkId"`
	DealID  uuid.UUID `json:"dealId"`
	AgentID uuid.UUID `json:"agentId"`
}

func (e LinkShared) EventName() string { return "links.link.shared" }

// =============================================================================
// Session Domain Events
// =============================================================================

// SessionStarted is published when a client opens a link and a browsing
// session begins.
type SessionStarted struct {
	BaseEvent
	SessionID   uuid.UUID `json:"sessionId"`
	LinkID      uuid.UUID `json:"linkId"`
	DealID      uuid.UUID `json:"dealId"`
	AgentID     uuid.UUID `json:"agentId"`
	ReturnVisit bool      `json:"returnVisit"`
	StartedAt   time.Time `json:"startedAt"`
}

func (e SessionStarted) EventName() string { return "engagement.session.started" }

// SessionEnded is published once per session, when it is finalized either by
// the client or by the inactivity sweep.
type SessionEnded struct {
	BaseEvent
	SessionID       uuid.UUID `json:"sessionId"`
	LinkID          uuid.UUID `json:"linkId"`
	DealID          uuid.UUID `json:"dealId"`
	AgentID         uuid.UUID `json:"agentId"`
	DurationSeconds int       `json:"durationSeconds"`
	Completed       bool      `json:"completed"`
	EndedBySweep    bool      `json:"endedBySweep"`
}

func (e SessionEnded) EventName() string { return "engagement.session.ended" }

// =============================================================================
// Deal Domain Events
// =============================================================================

// DealScoreChanged is published after every evaluation that changes the
// deal-level engagement score.
type DealScoreChanged struct {
	BaseEvent
	DealID      uuid.UUID `json:"dealId"`
	AgentID     uuid.UUID `json:"agentId"`
	OldScore    int       `json:"oldScore"`
	NewScore    int       `json:"newScore"`
	Temperature string    `json:"temperature"`
}

func (e DealScoreChanged) EventName() string { return "engagement.deal.score_changed" }

// DealStageChanged is published when the pipeline advances a deal.
type DealStageChanged struct {
	BaseEvent
	DealID   uuid.UUID `json:"dealId"`
	AgentID  uuid.UUID `json:"agentId"`
	OldStage string    `json:"oldStage"`
	NewStage string    `json:"newStage"`
	Score    int       `json:"score"`
}

func (e DealStageChanged) EventName() string { return "engagement.deal.stage_changed" }

// MilestoneReached is published at most once per deal per milestone.
type MilestoneReached struct {
	BaseEvent
	DealID    uuid.UUID `json:"dealId"`
	AgentID   uuid.UUID `json:"agentId"`
	Milestone string    `json:"milestone"`
	Score     int       `json:"score"`
}

func (e MilestoneReached) EventName() string { return "engagement.deal.milestone_reached" }

// DealWentHot is published when a deal's temperature first reaches hot. The
// email module subscribes to alert the agent.
type DealWentHot struct {
	BaseEvent
	DealID     uuid.UUID `json:"dealId"`
	AgentID    uuid.UUID `json:"agentId"`
	ClientName string    `json:"clientName,omitempty"`
	Score      int       `json:"score"`
}

func (e DealWentHot) EventName() string { return "engagement.deal.went_hot" }

// TasksGenerated is published when the automation engine creates follow-up
// tasks for a deal.
type TasksGenerated struct {
	BaseEvent
	DealID  uuid.UUID `json:"dealId"`
	AgentID uuid.UUID `json:"agentId"`
	TaskIDs []string  `json:"taskIds"`
	Count   int       `json:"count"`
}

func (e TasksGenerated) EventName() string { return "engagement.tasks.generated" }
