// Package service coordinates the full evaluation pipeline: session
// aggregation, scoring, temperature classification, stage advancement,
// milestone detection and task automation.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"swipelink_backend/internal/engagement/automation"
	"swipelink_backend/internal/engagement/domain"
	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/internal/engagement/scoring"
	sessionagg "swipelink_backend/internal/engagement/session"
	"swipelink_backend/internal/events"
	"swipelink_backend/internal/notification/sse"
	"swipelink_backend/platform/apperr"
	"swipelink_backend/platform/logger"
)

// maxEvalAttempts bounds the optimistic retry loop. Each retry re-reads the
// deal and redoes the whole evaluation, never just the write.
const maxEvalAttempts = 3

// Orchestrator runs the evaluation pipeline for a deal and fans the results
// out to tasks, events and connected dashboards.
type Orchestrator struct {
	repo     repository.EngagementRepository
	rules    *automation.Engine
	eventBus events.Bus
	sse      *sse.Service
	log      *logger.Logger

	locks *dealLocks
	now   func() time.Time
}

func NewOrchestrator(repo repository.EngagementRepository, rules *automation.Engine, eventBus events.Bus, sseService *sse.Service, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		rules:    rules,
		eventBus: eventBus,
		sse:      sseService,
		log:      log,
		locks:    newDealLocks(),
		now:      time.Now,
	}
}

// EvalResult is the outcome of one deal evaluation.
type EvalResult struct {
	Deal       repository.Deal
	Score      scoring.DealScore
	Milestones []string
	Tasks      []repository.Task
	// TaskPersistErr reports a best-effort task write failure. The
	// evaluation itself succeeded; only the drafted tasks were lost.
	TaskPersistErr error
	// MilestonePersistErr reports a milestone write failure. The crossing is
	// not lost: the next evaluation re-derives it from the recorded rows and
	// retries the insert.
	MilestonePersistErr error
	StageChanged        bool
	ScoreChanged        bool
}

// evalOptions carries the per-call inputs into an evaluation.
type evalOptions struct {
	// triggers that fired alongside this evaluation, in occurrence order.
	triggers []string
	// forceStage advances the deal to at least this stage regardless of
	// score, subject to the monotonic rule.
	forceStage string
	// markNurturing moves an active deal to nurturing. Only the inactivity
	// sweep sets this.
	markNurturing bool
}

// evaluateDeal recomputes a deal's engagement from its full session history
// and persists the result under optimistic concurrency. The per-deal lock
// serializes evaluations within this process; the version column guards
// against other processes. A lost race triggers a full re-read and
// re-evaluation, up to maxEvalAttempts.
func (o *Orchestrator) evaluateDeal(ctx context.Context, dealID uuid.UUID, opts evalOptions) (EvalResult, error) {
	release := o.locks.acquire(dealID)
	defer release()

	now := o.now()

	var (
		deal      repository.Deal
		updated   repository.Deal
		dealScore scoring.DealScore
		entered   []string
		moved     bool
	)

	for attempt := 0; ; attempt++ {
		var err error
		deal, err = o.repo.GetDeal(ctx, dealID)
		if errors.Is(err, repository.ErrNotFound) {
			return EvalResult{}, apperr.NotFound("deal not found").WithOp("engagement.evaluate")
		}
		if err != nil {
			return EvalResult{}, apperr.Wrap(apperr.KindInternal, "load deal", err).WithOp("engagement.evaluate")
		}

		if domain.IsTerminalStatus(deal.DealStatus) {
			// Closed deals are frozen: no scoring, no tasks, no events.
			return EvalResult{Deal: deal}, nil
		}

		sessions, err := o.repo.ListSessionsByLink(ctx, deal.LinkID)
		if err != nil {
			return EvalResult{}, apperr.Wrap(apperr.KindInternal, "load sessions", err).WithOp("engagement.evaluate")
		}

		dealScore = scoring.ScoreDeal(sessions, now)
		temperature := domain.ClassifyTemperature(dealScore.TotalScore)

		stage := deal.DealStage
		stage, moved = domain.AdvanceStage(stage, domain.StageForScore(dealScore.TotalScore))
		if opts.forceStage != "" {
			var forcedMove bool
			stage, forcedMove = domain.AdvanceStage(stage, opts.forceStage)
			moved = moved || forcedMove
		}
		entered = stagesEntered(deal.DealStage, stage)

		status := domain.DeriveStatus(deal.DealStatus, stage)
		if opts.markNurturing && status == domain.StatusActive {
			status = domain.StatusNurturing
		}

		highest := deal.HighestScore
		if dealScore.TotalScore > highest {
			highest = dealScore.TotalScore
		}

		totalTime := 0
		var lastActivity *time.Time
		for _, s := range sessions {
			totalTime += s.DurationSeconds
			t := s.LastActivityAt
			if lastActivity == nil || t.After(*lastActivity) {
				lastActivity = &t
			}
		}
		if lastActivity == nil {
			lastActivity = deal.LastActivityAt
		}

		updated, err = o.repo.UpdateDealEngagement(ctx, repository.UpdateDealEngagementParams{
			DealID:          deal.ID,
			ExpectedVersion: deal.Version,
			DealStage:       stage,
			DealStatus:      status,
			EngagementScore: dealScore.TotalScore,
			HighestScore:    highest,
			Temperature:     temperature,
			SessionCount:    len(sessions),
			TotalTimeSpent:  totalTime,
			LastActivityAt:  lastActivity,
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt+1 >= maxEvalAttempts {
				return EvalResult{}, apperr.Wrap(apperr.KindConflict, "deal evaluation lost the race repeatedly", err).WithOp("engagement.evaluate")
			}
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return EvalResult{}, apperr.NotFound("deal not found").WithOp("engagement.evaluate")
		}
		if err != nil {
			return EvalResult{}, apperr.Wrap(apperr.KindInternal, "persist deal evaluation", err).WithOp("engagement.evaluate")
		}
		break
	}

	result := EvalResult{
		Deal:         updated,
		Score:        dealScore,
		StageChanged: moved,
		ScoreChanged: updated.EngagementScore != deal.EngagementScore,
	}

	o.log.WithContext(ctx).ScoreComputed(updated.ID.String(), updated.EngagementScore, updated.Temperature, updated.DealStage)

	result.Milestones, result.MilestonePersistErr = o.recordMilestones(ctx, updated)

	triggers := append([]string(nil), opts.triggers...)
	for _, m := range result.Milestones {
		if m == domain.MilestoneScore80 {
			triggers = append(triggers, automation.TriggerHighEngagement)
		}
	}

	result.Tasks, result.TaskPersistErr = o.generateTasks(ctx, updated, triggers, entered, now)

	o.publishEvaluation(ctx, deal, updated, result)

	return result, nil
}

// stagesEntered lists the milestone-bearing stages the deal passed through
// moving from old to new, in pipeline order.
func stagesEntered(oldStage, newStage string) []string {
	oldRank := domain.StageRank(oldStage)
	newRank := domain.StageRank(newStage)
	if newRank <= oldRank {
		return nil
	}

	var entered []string
	for _, stage := range []string{domain.StageEngaged, domain.StageQualified} {
		rank := domain.StageRank(stage)
		if oldRank < rank && rank <= newRank {
			entered = append(entered, stage)
		}
	}
	return entered
}

// recordMilestones persists first-time crossings and returns only those that
// were genuinely new. Candidates are every milestone at or below the deal's
// committed high-water mark and stage; the store keeps first-writes only, so
// a milestone whose insert failed on an earlier evaluation is retried here
// instead of being gated away by the already-raised high-water mark.
func (o *Orchestrator) recordMilestones(ctx context.Context, deal repository.Deal) ([]string, error) {
	names := domain.ScoreMilestonesCrossed(0, deal.HighestScore)
	for _, stage := range []string{domain.StageEngaged, domain.StageQualified} {
		if domain.StageRank(stage) <= domain.StageRank(deal.DealStage) {
			names = append(names, domain.StageMilestone(stage))
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	recorded, err := o.repo.RecordMilestones(ctx, deal.ID, names, deal.EngagementScore)
	if err != nil {
		o.log.WithContext(ctx).Error("engagement: failed to record milestones", "dealId", deal.ID, "error", err)
		return nil, err
	}

	milestones := make([]string, 0, len(recorded))
	for _, m := range recorded {
		milestones = append(milestones, m.Milestone)
		o.log.WithContext(ctx).MilestoneReached(deal.ID.String(), m.Milestone, deal.EngagementScore)
	}
	return milestones, nil
}

// generateTasks runs the automation engine and persists the drafts. Task
// persistence is best-effort: a failure is returned for reporting but never
// fails the evaluation that produced the drafts.
func (o *Orchestrator) generateTasks(ctx context.Context, deal repository.Deal, triggers, entered []string, now time.Time) ([]repository.Task, error) {
	existing, err := o.repo.ListMilestoneTags(ctx, deal.ID)
	if err != nil {
		o.log.WithContext(ctx).Error("engagement: failed to load task dedup tags", "dealId", deal.ID, "error", err)
		return nil, err
	}

	lastActivity := time.Time{}
	if deal.LastActivityAt != nil {
		lastActivity = *deal.LastActivityAt
	}

	drafts := o.rules.Evaluate(automation.Input{
		Deal: automation.DealSnapshot{
			Stage:          deal.DealStage,
			Status:         deal.DealStatus,
			Score:          deal.EngagementScore,
			LastActivityAt: lastActivity,
		},
		Triggers:      triggers,
		EnteredStages: entered,
		ExistingTags:  existing,
		Now:           now,
	})
	if len(drafts) == 0 {
		return nil, nil
	}

	params := make([]repository.CreateTaskParams, 0, len(drafts))
	for _, draft := range drafts {
		var tag *string
		if draft.Tag != "" {
			t := draft.Tag
			tag = &t
		}
		params = append(params, repository.CreateTaskParams{
			DealID:       deal.ID,
			Title:        draft.Title,
			Description:  draft.Description,
			Type:         draft.Type,
			Priority:     draft.Priority,
			IsAutomated:  true,
			TriggerType:  draft.Source,
			MilestoneTag: tag,
			DueDate:      draft.DueAt,
		})
	}

	tasks, err := o.repo.CreateTasks(ctx, params)
	if err != nil {
		o.log.WithContext(ctx).Error("engagement: failed to persist generated tasks", "dealId", deal.ID, "error", err)
		return tasks, err
	}
	return tasks, nil
}

// publishEvaluation fans the evaluation outcome out to the event bus and the
// owning agent's SSE stream.
func (o *Orchestrator) publishEvaluation(ctx context.Context, before, after repository.Deal, result EvalResult) {
	if result.ScoreChanged {
		o.eventBus.Publish(ctx, events.DealScoreChanged{
			BaseEvent:   events.NewBaseEvent(),
			DealID:      after.ID,
			AgentID:     after.AgentID,
			OldScore:    before.EngagementScore,
			NewScore:    after.EngagementScore,
			Temperature: after.Temperature,
		})
		o.sse.Publish(after.AgentID, sse.Event{
			Type:   sse.EventScoreUpdated,
			DealID: after.ID,
			Data: map[string]interface{}{
				"score":       after.EngagementScore,
				"temperature": after.Temperature,
			},
		})
	}

	if result.StageChanged {
		o.eventBus.Publish(ctx, events.DealStageChanged{
			BaseEvent: events.NewBaseEvent(),
			DealID:    after.ID,
			AgentID:   after.AgentID,
			OldStage:  before.DealStage,
			NewStage:  after.DealStage,
			Score:     after.EngagementScore,
		})
		o.sse.Publish(after.AgentID, sse.Event{
			Type:   sse.EventStageChanged,
			DealID: after.ID,
			Data:   map[string]interface{}{"stage": after.DealStage},
		})
	}

	for _, milestone := range result.Milestones {
		o.eventBus.Publish(ctx, events.MilestoneReached{
			BaseEvent: events.NewBaseEvent(),
			DealID:    after.ID,
			AgentID:   after.AgentID,
			Milestone: milestone,
			Score:     after.EngagementScore,
		})
		o.sse.Publish(after.AgentID, sse.Event{
			Type:   sse.EventMilestoneReached,
			DealID: after.ID,
			Data:   map[string]interface{}{"milestone": milestone, "score": after.EngagementScore},
		})

		if milestone == domain.MilestoneScore80 {
			clientName := ""
			if after.ClientName != nil {
				clientName = *after.ClientName
			}
			o.eventBus.Publish(ctx, events.DealWentHot{
				BaseEvent:  events.NewBaseEvent(),
				DealID:     after.ID,
				AgentID:    after.AgentID,
				ClientName: clientName,
				Score:      after.EngagementScore,
			})
			o.sse.Publish(after.AgentID, sse.Event{
				Type:   sse.EventDealWentHot,
				DealID: after.ID,
				Data:   map[string]interface{}{"score": after.EngagementScore},
			})
		}
	}

	if len(result.Tasks) > 0 {
		taskIDs := make([]string, 0, len(result.Tasks))
		for _, task := range result.Tasks {
			taskIDs = append(taskIDs, task.ID.String())
		}
		o.eventBus.Publish(ctx, events.TasksGenerated{
			BaseEvent: events.NewBaseEvent(),
			DealID:    after.ID,
			AgentID:   after.AgentID,
			TaskIDs:   taskIDs,
			Count:     len(result.Tasks),
		})
		o.sse.Publish(after.AgentID, sse.Event{
			Type:   sse.EventTaskCreated,
			DealID: after.ID,
			Data:   map[string]interface{}{"count": len(result.Tasks)},
		})
	}
}

// RecordInteractionInput is one swipe, detail open or visit request from the
// client UI.
type RecordInteractionInput struct {
	SessionID  uuid.UUID
	PropertyID uuid.UUID
	Action     string
	OccurredAt time.Time
	Metadata   map[string]string
}

// InteractionResult reports the updated session summary and, when the deal
// was still present, the deal evaluation it triggered.
type InteractionResult struct {
	Event   repository.InteractionEvent
	Session repository.LinkSession
	Metrics scoring.Metrics
	// Eval is nil when the session's deal had vanished; the interaction is
	// still recorded and the summary still updated.
	Eval *EvalResult
}

// RecordInteraction appends one interaction event, recomputes the session
// summary from scratch, and re-evaluates the deal. Invalid input is rejected
// before anything is written.
func (o *Orchestrator) RecordInteraction(ctx context.Context, in RecordInteractionInput) (InteractionResult, error) {
	now := o.now()

	if err := sessionagg.ValidateEvent(in.Action, in.PropertyID, in.OccurredAt, now); err != nil {
		return InteractionResult{}, err
	}

	sess, err := o.repo.GetSession(ctx, in.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return InteractionResult{}, apperr.NotFound("session not found").WithOp("engagement.interaction")
	}
	if err != nil {
		return InteractionResult{}, apperr.Wrap(apperr.KindInternal, "load session", err).WithOp("engagement.interaction")
	}
	if sess.EndedAt != nil {
		return InteractionResult{}, apperr.Conflict("session already ended").WithOp("engagement.interaction")
	}

	event, err := o.repo.InsertInteraction(ctx, repository.InsertInteractionParams{
		SessionID:  sess.ID,
		LinkID:     sess.LinkID,
		PropertyID: in.PropertyID,
		Action:     in.Action,
		OccurredAt: in.OccurredAt,
		Metadata:   in.Metadata,
	})
	if err != nil {
		return InteractionResult{}, apperr.Wrap(apperr.KindInternal, "record interaction", err).WithOp("engagement.interaction")
	}

	sess, err = o.recomputeSession(ctx, sess, now)
	if err != nil {
		return InteractionResult{}, err
	}

	result := InteractionResult{
		Event:   event,
		Session: sess,
		Metrics: scoring.Score(sess, now),
	}

	opts := evalOptions{}
	if in.Action == repository.ActionLike {
		// An explicit like always counts as engagement, whatever the score.
		opts.forceStage = domain.StageEngaged
		opts.triggers = append(opts.triggers, automation.TriggerPropertyLiked)
	}
	if in.Metadata["visitRequested"] == "true" {
		opts.triggers = append(opts.triggers, automation.TriggerVisitRequested)
	}

	eval, err := o.evaluateDeal(ctx, sess.DealID, opts)
	if apperr.Is(err, apperr.KindNotFound) {
		// The interaction stands on its own; a vanished deal is logged, not
		// surfaced to the client device.
		o.log.WithContext(ctx).Warn("engagement: interaction recorded for missing deal", "sessionId", sess.ID, "dealId", sess.DealID)
		return result, nil
	}
	if err != nil {
		return InteractionResult{}, err
	}

	result.Eval = &eval
	return result, nil
}

// recomputeSession folds the session's full event history into a fresh
// summary and persists it.
func (o *Orchestrator) recomputeSession(ctx context.Context, sess repository.LinkSession, now time.Time) (repository.LinkSession, error) {
	history, err := o.repo.ListSessionInteractions(ctx, sess.ID)
	if err != nil {
		return repository.LinkSession{}, apperr.Wrap(apperr.KindInternal, "load session history", err).WithOp("engagement.aggregate")
	}

	sess = sessionagg.Aggregate(sess, history, now)
	if err := o.repo.UpdateSessionSummary(ctx, sess); err != nil {
		return repository.LinkSession{}, apperr.Wrap(apperr.KindInternal, "persist session summary", err).WithOp("engagement.aggregate")
	}
	return sess, nil
}

// EndResult reports the final session summary and the deal evaluation the
// finalization triggered.
type EndResult struct {
	Session repository.LinkSession
	Metrics scoring.Metrics
	// Finalized is false when the session had already ended; the stored
	// summary is returned untouched and no re-evaluation runs.
	Finalized bool
	Eval      *EvalResult
}

// EndSession finalizes a session exactly once. Repeated calls are no-ops
// that return the stored state, which makes client retries and the
// inactivity sweep safe against each other.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID uuid.UUID, bySweep bool) (EndResult, error) {
	now := o.now()

	sess, err := o.repo.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return EndResult{}, apperr.NotFound("session not found").WithOp("engagement.end_session")
	}
	if err != nil {
		return EndResult{}, apperr.Wrap(apperr.KindInternal, "load session", err).WithOp("engagement.end_session")
	}

	finalized, err := o.repo.FinalizeSession(ctx, sessionID, now)
	if err != nil {
		return EndResult{}, apperr.Wrap(apperr.KindInternal, "finalize session", err).WithOp("engagement.end_session")
	}
	if !finalized {
		return EndResult{Session: sess, Metrics: scoring.Score(sess, now), Finalized: false}, nil
	}

	endedAt := now
	sess.EndedAt = &endedAt
	sess, err = o.recomputeSession(ctx, sess, now)
	if err != nil {
		return EndResult{}, err
	}

	result := EndResult{
		Session:   sess,
		Metrics:   scoring.Score(sess, now),
		Finalized: true,
	}

	eval, err := o.evaluateDeal(ctx, sess.DealID, evalOptions{})
	if apperr.Is(err, apperr.KindNotFound) {
		o.log.WithContext(ctx).Warn("engagement: session ended for missing deal", "sessionId", sess.ID, "dealId", sess.DealID)
	} else if err != nil {
		return EndResult{}, err
	} else {
		result.Eval = &eval
		o.eventBus.Publish(ctx, events.SessionEnded{
			BaseEvent:       events.NewBaseEvent(),
			SessionID:       sess.ID,
			LinkID:          sess.LinkID,
			DealID:          sess.DealID,
			AgentID:         eval.Deal.AgentID,
			DurationSeconds: sess.DurationSeconds,
			Completed:       sess.Completed,
			EndedBySweep:    bySweep,
		})
		o.sse.Publish(eval.Deal.AgentID, sse.Event{
			Type:   sse.EventSessionEnded,
			DealID: sess.DealID,
			LinkID: sess.LinkID,
			Data:   map[string]interface{}{"durationSeconds": sess.DurationSeconds, "completed": sess.Completed},
		})
	}

	return result, nil
}

// ScheduleShowing advances the deal to the advanced stage and fires the
// showing trigger. Called when the agent books a showing with the client.
func (o *Orchestrator) ScheduleShowing(ctx context.Context, dealID uuid.UUID) (EvalResult, error) {
	return o.evaluateDeal(ctx, dealID, evalOptions{
		triggers:   []string{automation.TriggerShowingScheduled},
		forceStage: domain.StageAdvanced,
	})
}

// FinalizeStaleSessions ends open sessions idle longer than idleFor. Run by
// the scheduler; safe to run concurrently with live traffic because
// finalization is idempotent.
func (o *Orchestrator) FinalizeStaleSessions(ctx context.Context, idleFor time.Duration, limit int) (int, error) {
	now := o.now()

	stale, err := o.repo.ListStaleOpenSessions(ctx, now.Add(-idleFor), limit)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "list stale sessions", err).WithOp("engagement.sweep")
	}

	ended := 0
	for _, sess := range stale {
		result, err := o.EndSession(ctx, sess.ID, true)
		if err != nil {
			o.log.WithContext(ctx).Error("engagement: sweep failed to end session", "sessionId", sess.ID, "error", err)
			continue
		}
		if result.Finalized {
			ended++
		}
	}
	return ended, nil
}

// SweepInactiveDeals re-evaluates deals quiet for longer than inactiveFor,
// firing the inactivity trigger and moving active deals into nurturing.
func (o *Orchestrator) SweepInactiveDeals(ctx context.Context, inactiveFor time.Duration, limit int) (int, error) {
	now := o.now()

	deals, err := o.repo.ListInactiveDeals(ctx, now.Add(-inactiveFor), limit)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "list inactive deals", err).WithOp("engagement.sweep")
	}

	evaluated := 0
	for _, deal := range deals {
		_, err := o.evaluateDeal(ctx, deal.ID, evalOptions{
			triggers:      []string{automation.TriggerInactivity3Days},
			markNurturing: true,
		})
		if err != nil {
			o.log.WithContext(ctx).Error("engagement: inactivity evaluation failed", "dealId", deal.ID, "error", err)
			continue
		}
		evaluated++
	}
	return evaluated, nil
}
