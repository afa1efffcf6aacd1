package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EngagementRepository is the persistence surface the engagement services
// depend on. The concrete implementation is pgx-backed; tests substitute
// in-memory fakes.
type EngagementRepository interface {
	CreateLink(ctx context.Context, params CreateLinkParams) (Link, Deal, error)
	GetLink(ctx context.Context, id uuid.UUID) (Link, error)
	MarkLinkShared(ctx context.Context, id uuid.UUID, sharedAt time.Time) error

	GetDeal(ctx context.Context, id uuid.UUID) (Deal, error)
	GetDealByLink(ctx context.Context, linkID uuid.UUID) (Deal, error)
	UpdateDealEngagement(ctx context.Context, params UpdateDealEngagementParams) (Deal, error)
	UpdateDealStage(ctx context.Context, dealID uuid.UUID, stage, status string) (Deal, error)
	IdentifyClient(ctx context.Context, dealID uuid.UUID, contact ClientContact) error
	ListInactiveDeals(ctx context.Context, cutoff time.Time, limit int) ([]Deal, error)

	CreateSession(ctx context.Context, params CreateSessionParams) (LinkSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (LinkSession, error)
	UpdateSessionSummary(ctx context.Context, s LinkSession) error
	FinalizeSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (bool, error)
	ListSessionsByLink(ctx context.Context, linkID uuid.UUID) ([]LinkSession, error)
	CountSessionsForLink(ctx context.Context, linkID uuid.UUID) (int, error)
	ListStaleOpenSessions(ctx context.Context, idleBefore time.Time, limit int) ([]LinkSession, error)

	InsertInteraction(ctx context.Context, params InsertInteractionParams) (InteractionEvent, error)
	ListSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]InteractionEvent, error)

	CreateTasks(ctx context.Context, drafts []CreateTaskParams) ([]Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (Task, error)
	ListDealTasks(ctx context.Context, dealID uuid.UUID, onlyOpen bool) ([]Task, error)
	SetTaskStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) (Task, error)
	ListMilestoneTags(ctx context.Context, dealID uuid.UUID) (map[string]bool, error)

	RecordMilestones(ctx context.Context, dealID uuid.UUID, milestones []string, score int) ([]DealMilestone, error)
	ListDealMilestones(ctx context.Context, dealID uuid.UUID) ([]DealMilestone, error)
}

// Compile-time check that the pgx repository satisfies the interface.
var _ EngagementRepository = (*Repository)(nil)
