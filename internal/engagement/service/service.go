package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"swipelink_backend/internal/engagement/automation"
	"swipelink_backend/internal/engagement/domain"
	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/internal/engagement/scoring"
	"swipelink_backend/internal/events"
	"swipelink_backend/internal/notification/sse"
	"swipelink_backend/platform/apperr"
	"swipelink_backend/platform/logger"
	"swipelink_backend/platform/phone"
)

// SessionScheduler schedules a delayed idle-check for a session. Implemented
// by the asynq client; nil when Redis is not configured, in which case the
// periodic sweep alone finalizes idle sessions.
type SessionScheduler interface {
	ScheduleSessionFinalize(ctx context.Context, sessionID uuid.UUID, runAt time.Time) error
}

// Service owns the link and deal lifecycle around the evaluation pipeline:
// creating and sharing links, opening sessions, and the agent-facing reads.
type Service struct {
	repo         repository.EngagementRepository
	orchestrator *Orchestrator
	eventBus     events.Bus
	sse          *sse.Service
	log          *logger.Logger
	now          func() time.Time

	scheduler   SessionScheduler
	idleTimeout time.Duration
}

func NewService(repo repository.EngagementRepository, orchestrator *Orchestrator, eventBus events.Bus, sseService *sse.Service, log *logger.Logger) *Service {
	return &Service{
		repo:         repo,
		orchestrator: orchestrator,
		eventBus:     eventBus,
		sse:          sseService,
		log:          log,
		now:          time.Now,
	}
}

// SetSessionScheduler wires the optional delayed finalize-check scheduler.
func (s *Service) SetSessionScheduler(scheduler SessionScheduler, idleTimeout time.Duration) {
	s.scheduler = scheduler
	s.idleTimeout = idleTimeout
}

type CreateLinkInput struct {
	AgentID       uuid.UUID
	Name          string
	PropertyCount int
}

type CreateLinkResult struct {
	Link  repository.Link
	Deal  repository.Deal
	Tasks []repository.Task
}

// CreateLink creates a shareable link and its deal in one step. The deal
// starts at the created stage; the link-created preparation task is drafted
// immediately.
func (s *Service) CreateLink(ctx context.Context, in CreateLinkInput) (CreateLinkResult, error) {
	if in.AgentID == uuid.Nil {
		return CreateLinkResult{}, apperr.Validation("agent id is required")
	}
	if in.PropertyCount <= 0 {
		return CreateLinkResult{}, apperr.Validation("a link needs at least one property")
	}

	link, deal, err := s.repo.CreateLink(ctx, repository.CreateLinkParams{
		AgentID:       in.AgentID,
		Name:          in.Name,
		PropertyCount: in.PropertyCount,
		Stage:         domain.StageCreated,
		Status:        domain.StatusActive,
		Temperature:   domain.TemperatureCold,
	})
	if err != nil {
		return CreateLinkResult{}, apperr.Wrap(apperr.KindInternal, "create link", err).WithOp("engagement.create_link")
	}

	s.eventBus.Publish(ctx, events.LinkCreated{
		BaseEvent:     events.NewBaseEvent(),
		LinkID:        link.ID,
		DealID:        deal.ID,
		AgentID:       link.AgentID,
		Name:          link.Name,
		PropertyCount: link.PropertyCount,
	})

	tasks, taskErr := s.orchestrator.generateTasks(ctx, deal, []string{automation.TriggerLinkCreated}, nil, s.now())
	if taskErr != nil {
		s.log.WithContext(ctx).Error("engagement: link-created task draft failed", "dealId", deal.ID, "error", taskErr)
	}

	return CreateLinkResult{Link: link, Deal: deal, Tasks: tasks}, nil
}

// ShareLink records that the agent sent the link to the client and advances
// the deal to the shared stage. Repeating the call keeps the original share
// timestamp and does not redraft the follow-up task.
func (s *Service) ShareLink(ctx context.Context, linkID uuid.UUID) (repository.Deal, error) {
	now := s.now()

	if err := s.repo.MarkLinkShared(ctx, linkID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Deal{}, apperr.NotFound("link not found").WithOp("engagement.share_link")
		}
		return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "mark link shared", err).WithOp("engagement.share_link")
	}

	deal, err := s.repo.GetDealByLink(ctx, linkID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Deal{}, apperr.NotFound("deal not found").WithOp("engagement.share_link")
	}
	if err != nil {
		return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "load deal", err).WithOp("engagement.share_link")
	}

	if stage, moved := domain.AdvanceStage(deal.DealStage, domain.StageShared); moved {
		deal, err = s.repo.UpdateDealStage(ctx, deal.ID, stage, deal.DealStatus)
		if err != nil {
			return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "advance deal stage", err).WithOp("engagement.share_link")
		}
	}

	s.eventBus.Publish(ctx, events.LinkShared{
		BaseEvent: events.NewBaseEvent(),
		LinkID:    linkID,
		DealID:    deal.ID,
		AgentID:   deal.AgentID,
	})

	if _, err := s.orchestrator.generateTasks(ctx, deal, []string{automation.TriggerLinkShared}, nil, now); err != nil {
		s.log.WithContext(ctx).Error("engagement: link-shared task draft failed", "dealId", deal.ID, "error", err)
	}

	return deal, nil
}

// ClientContext is the optional client identity sent along when a session
// starts, typically captured by the link landing page.
type ClientContext struct {
	ClientID *uuid.UUID
	Name     string
	Phone    string
	Email    string
}

type StartSessionInput struct {
	LinkID uuid.UUID
	Client ClientContext
}

type StartSessionResult struct {
	Session     repository.LinkSession
	Deal        repository.Deal
	ReturnVisit bool
}

// StartSession opens a browsing session for a link. The first session ever
// advances the deal to the accessed stage and drafts the link-accessed task;
// later sessions are flagged as return visits, which feeds the scoring
// bonus. Client identity, when present, sticks to the deal with the phone
// number normalized to E.164.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (StartSessionResult, error) {
	now := s.now()

	link, err := s.repo.GetLink(ctx, in.LinkID)
	if errors.Is(err, repository.ErrNotFound) {
		return StartSessionResult{}, apperr.NotFound("link not found").WithOp("engagement.start_session")
	}
	if err != nil {
		return StartSessionResult{}, apperr.Wrap(apperr.KindInternal, "load link", err).WithOp("engagement.start_session")
	}

	deal, err := s.repo.GetDealByLink(ctx, link.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return StartSessionResult{}, apperr.NotFound("deal not found").WithOp("engagement.start_session")
	}
	if err != nil {
		return StartSessionResult{}, apperr.Wrap(apperr.KindInternal, "load deal", err).WithOp("engagement.start_session")
	}

	priorSessions, err := s.repo.CountSessionsForLink(ctx, link.ID)
	if err != nil {
		return StartSessionResult{}, apperr.Wrap(apperr.KindInternal, "count sessions", err).WithOp("engagement.start_session")
	}
	returnVisit := priorSessions > 0

	sess, err := s.repo.CreateSession(ctx, repository.CreateSessionParams{
		SessionID:       uuid.New(),
		LinkID:          link.ID,
		DealID:          deal.ID,
		StartedAt:       now,
		TotalProperties: link.PropertyCount,
		ReturnVisit:     returnVisit,
	})
	if err != nil {
		return StartSessionResult{}, apperr.Wrap(apperr.KindInternal, "create session", err).WithOp("engagement.start_session")
	}

	s.identifyClient(ctx, deal.ID, in.Client)

	if s.scheduler != nil && s.idleTimeout > 0 {
		if err := s.scheduler.ScheduleSessionFinalize(ctx, sess.ID, now.Add(s.idleTimeout)); err != nil {
			s.log.WithContext(ctx).Error("engagement: failed to schedule finalize check", "sessionId", sess.ID, "error", err)
		}
	}

	if !returnVisit {
		if stage, moved := domain.AdvanceStage(deal.DealStage, domain.StageAccessed); moved {
			deal, err = s.repo.UpdateDealStage(ctx, deal.ID, stage, deal.DealStatus)
			if err != nil {
				return StartSessionResult{}, apperr.Wrap(apperr.KindInternal, "advance deal stage", err).WithOp("engagement.start_session")
			}
		}
		if _, err := s.orchestrator.generateTasks(ctx, deal, []string{automation.TriggerLinkAccessed}, nil, now); err != nil {
			s.log.WithContext(ctx).Error("engagement: link-accessed task draft failed", "dealId", deal.ID, "error", err)
		}
	}

	s.eventBus.Publish(ctx, events.SessionStarted{
		BaseEvent:   events.NewBaseEvent(),
		SessionID:   sess.ID,
		LinkID:      link.ID,
		DealID:      deal.ID,
		AgentID:     deal.AgentID,
		ReturnVisit: returnVisit,
		StartedAt:   sess.StartedAt,
	})
	s.sse.Publish(deal.AgentID, sse.Event{
		Type:   sse.EventSessionStarted,
		DealID: deal.ID,
		LinkID: link.ID,
		Data:   map[string]interface{}{"returnVisit": returnVisit},
	})

	return StartSessionResult{Session: sess, Deal: deal, ReturnVisit: returnVisit}, nil
}

// identifyClient attaches whatever identity the landing page captured.
// Best-effort: a failure here never blocks the session.
func (s *Service) identifyClient(ctx context.Context, dealID uuid.UUID, client ClientContext) {
	if client.ClientID == nil && client.Name == "" && client.Phone == "" && client.Email == "" {
		return
	}

	contact := repository.ClientContact{ClientID: client.ClientID}
	if client.Name != "" {
		contact.Name = &client.Name
	}
	if client.Phone != "" {
		normalized := phone.NormalizeE164(client.Phone)
		contact.Phone = &normalized
	}
	if client.Email != "" {
		contact.Email = &client.Email
	}

	if err := s.repo.IdentifyClient(ctx, dealID, contact); err != nil {
		s.log.WithContext(ctx).Error("engagement: client identification failed", "dealId", dealID, "error", err)
	}
}

// CloseDeal moves a deal to the closed stage with a terminal status. This is
// a manual agent action; automatic processing never closes deals.
func (s *Service) CloseDeal(ctx context.Context, dealID uuid.UUID, won bool) (repository.Deal, error) {
	deal, err := s.repo.GetDeal(ctx, dealID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Deal{}, apperr.NotFound("deal not found").WithOp("engagement.close_deal")
	}
	if err != nil {
		return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "load deal", err).WithOp("engagement.close_deal")
	}
	if domain.IsTerminalStatus(deal.DealStatus) {
		return repository.Deal{}, apperr.Conflict("deal already closed").WithOp("engagement.close_deal")
	}

	status := domain.StatusClosedLost
	if won {
		status = domain.StatusClosedWon
	}

	updated, err := s.repo.UpdateDealStage(ctx, deal.ID, domain.StageClosed, status)
	if err != nil {
		return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "close deal", err).WithOp("engagement.close_deal")
	}

	s.eventBus.Publish(ctx, events.DealStageChanged{
		BaseEvent: events.NewBaseEvent(),
		DealID:    updated.ID,
		AgentID:   updated.AgentID,
		OldStage:  deal.DealStage,
		NewStage:  updated.DealStage,
		Score:     updated.EngagementScore,
	})

	return updated, nil
}

// DealOverview is the agent dashboard read model for one deal.
type DealOverview struct {
	Deal       repository.Deal
	Sessions   []repository.LinkSession
	OpenTasks  []repository.Task
	Milestones []repository.DealMilestone
	Score      scoring.DealScore
}

// GetDealOverview loads the deal together with its session history, open
// tasks and milestones. The independent reads run in parallel.
func (s *Service) GetDealOverview(ctx context.Context, dealID uuid.UUID) (DealOverview, error) {
	deal, err := s.repo.GetDeal(ctx, dealID)
	if errors.Is(err, repository.ErrNotFound) {
		return DealOverview{}, apperr.NotFound("deal not found").WithOp("engagement.deal_overview")
	}
	if err != nil {
		return DealOverview{}, apperr.Wrap(apperr.KindInternal, "load deal", err).WithOp("engagement.deal_overview")
	}

	overview := DealOverview{Deal: deal}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions, err := s.repo.ListSessionsByLink(gctx, deal.LinkID)
		if err != nil {
			return err
		}
		overview.Sessions = sessions
		return nil
	})
	g.Go(func() error {
		tasks, err := s.repo.ListDealTasks(gctx, deal.ID, true)
		if err != nil {
			return err
		}
		overview.OpenTasks = tasks
		return nil
	})
	g.Go(func() error {
		milestones, err := s.repo.ListDealMilestones(gctx, deal.ID)
		if err != nil {
			return err
		}
		overview.Milestones = milestones
		return nil
	})
	if err := g.Wait(); err != nil {
		return DealOverview{}, apperr.Wrap(apperr.KindInternal, "load deal overview", err).WithOp("engagement.deal_overview")
	}

	overview.Score = scoring.ScoreDeal(overview.Sessions, s.now())
	return overview, nil
}

// ListLinkSessions returns a link's session history, newest first.
func (s *Service) ListLinkSessions(ctx context.Context, linkID uuid.UUID) ([]repository.LinkSession, error) {
	if _, err := s.repo.GetLink(ctx, linkID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("link not found").WithOp("engagement.list_sessions")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "load link", err).WithOp("engagement.list_sessions")
	}

	sessions, err := s.repo.ListSessionsByLink(ctx, linkID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list sessions", err).WithOp("engagement.list_sessions")
	}
	return sessions, nil
}

// ListDealTasks returns a deal's tasks, optionally only the open ones.
func (s *Service) ListDealTasks(ctx context.Context, dealID uuid.UUID, onlyOpen bool) ([]repository.Task, error) {
	tasks, err := s.repo.ListDealTasks(ctx, dealID, onlyOpen)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list tasks", err).WithOp("engagement.list_tasks")
	}
	return tasks, nil
}

// ResolveTask completes or dismisses a pending task.
func (s *Service) ResolveTask(ctx context.Context, taskID uuid.UUID, status string) (repository.Task, error) {
	if status != repository.TaskStatusCompleted && status != repository.TaskStatusDismissed {
		return repository.Task{}, apperr.Validation("task status must be completed or dismissed")
	}

	task, err := s.repo.SetTaskStatus(ctx, taskID, status, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Task{}, apperr.NotFound("task not found").WithOp("engagement.resolve_task")
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return repository.Task{}, apperr.Conflict("task is no longer pending").WithOp("engagement.resolve_task")
	}
	if err != nil {
		return repository.Task{}, apperr.Wrap(apperr.KindInternal, "update task", err).WithOp("engagement.resolve_task")
	}
	return task, nil
}
