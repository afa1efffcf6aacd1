package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"swipelink_backend/internal/engagement/repository"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory EngagementRepository with the same concurrency
// semantics as the pgx implementation: version-guarded deal writes, idempotent
// finalization, and uniqueness on milestone names and task tags.
type fakeRepo struct {
	mu           sync.Mutex
	links        map[uuid.UUID]repository.Link
	deals        map[uuid.UUID]repository.Deal
	sessions     map[uuid.UUID]repository.LinkSession
	interactions map[uuid.UUID][]repository.InteractionEvent
	tasks        []repository.Task
	milestones   map[uuid.UUID]map[string]repository.DealMilestone

	// injectConflicts makes the next N UpdateDealEngagement calls lose the
	// optimistic race, simulating a concurrent writer in another process.
	injectConflicts int
	// failMilestoneWrites makes the next N RecordMilestones calls fail,
	// simulating a transient store error after the deal update committed.
	failMilestoneWrites int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		links:        make(map[uuid.UUID]repository.Link),
		deals:        make(map[uuid.UUID]repository.Deal),
		sessions:     make(map[uuid.UUID]repository.LinkSession),
		interactions: make(map[uuid.UUID][]repository.InteractionEvent),
		milestones:   make(map[uuid.UUID]map[string]repository.DealMilestone),
	}
}

func (f *fakeRepo) CreateLink(_ context.Context, params repository.CreateLinkParams) (repository.Link, repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	link := repository.Link{
		ID:            uuid.New(),
		AgentID:       params.AgentID,
		Name:          params.Name,
		PropertyCount: params.PropertyCount,
		CreatedAt:     now,
	}
	deal := repository.Deal{
		ID:          uuid.New(),
		LinkID:      link.ID,
		AgentID:     params.AgentID,
		DealStage:   params.Stage,
		DealStatus:  params.Status,
		Temperature: params.Temperature,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.links[link.ID] = link
	f.deals[deal.ID] = deal
	return link, deal, nil
}

func (f *fakeRepo) GetLink(_ context.Context, id uuid.UUID) (repository.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[id]
	if !ok {
		return repository.Link{}, repository.ErrNotFound
	}
	return link, nil
}

func (f *fakeRepo) MarkLinkShared(_ context.Context, id uuid.UUID, sharedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[id]
	if !ok {
		return repository.ErrNotFound
	}
	if link.SharedAt == nil {
		link.SharedAt = &sharedAt
		f.links[id] = link
	}
	return nil
}

func (f *fakeRepo) GetDeal(_ context.Context, id uuid.UUID) (repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal, ok := f.deals[id]
	if !ok {
		return repository.Deal{}, repository.ErrNotFound
	}
	return deal, nil
}

func (f *fakeRepo) GetDealByLink(_ context.Context, linkID uuid.UUID) (repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, deal := range f.deals {
		if deal.LinkID == linkID {
			return deal, nil
		}
	}
	return repository.Deal{}, repository.ErrNotFound
}

func (f *fakeRepo) UpdateDealEngagement(_ context.Context, params repository.UpdateDealEngagementParams) (repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	deal, ok := f.deals[params.DealID]
	if !ok {
		return repository.Deal{}, repository.ErrNotFound
	}
	if f.injectConflicts > 0 {
		f.injectConflicts--
		deal.Version++ // the concurrent writer bumped the row
		f.deals[params.DealID] = deal
		return repository.Deal{}, repository.ErrVersionConflict
	}
	if deal.Version != params.ExpectedVersion {
		return repository.Deal{}, repository.ErrVersionConflict
	}

	deal.DealStage = params.DealStage
	deal.DealStatus = params.DealStatus
	deal.EngagementScore = params.EngagementScore
	deal.HighestScore = params.HighestScore
	deal.Temperature = params.Temperature
	deal.SessionCount = params.SessionCount
	deal.TotalTimeSpent = params.TotalTimeSpent
	deal.LastActivityAt = params.LastActivityAt
	deal.Version++
	deal.UpdatedAt = time.Now()
	f.deals[params.DealID] = deal
	return deal, nil
}

func (f *fakeRepo) UpdateDealStage(_ context.Context, dealID uuid.UUID, stage, status string) (repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal, ok := f.deals[dealID]
	if !ok {
		return repository.Deal{}, repository.ErrNotFound
	}
	deal.DealStage = stage
	deal.DealStatus = status
	deal.Version++
	deal.UpdatedAt = time.Now()
	f.deals[dealID] = deal
	return deal, nil
}

func (f *fakeRepo) IdentifyClient(_ context.Context, dealID uuid.UUID, contact repository.ClientContact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal, ok := f.deals[dealID]
	if !ok {
		return repository.ErrNotFound
	}
	if deal.ClientID == nil {
		deal.ClientID = contact.ClientID
	}
	if deal.ClientName == nil {
		deal.ClientName = contact.Name
	}
	if deal.ClientPhone == nil {
		deal.ClientPhone = contact.Phone
	}
	if deal.ClientEmail == nil {
		deal.ClientEmail = contact.Email
	}
	f.deals[dealID] = deal
	return nil
}

func (f *fakeRepo) ListInactiveDeals(_ context.Context, cutoff time.Time, limit int) ([]repository.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Deal
	for _, deal := range f.deals {
		if deal.LastActivityAt == nil || deal.LastActivityAt.After(cutoff) {
			continue
		}
		if deal.DealStatus == "closed-won" || deal.DealStatus == "closed-lost" {
			continue
		}
		out = append(out, deal)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateSession(_ context.Context, params repository.CreateSessionParams) (repository.LinkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := repository.LinkSession{
		ID:              params.SessionID,
		LinkID:          params.LinkID,
		DealID:          params.DealID,
		StartedAt:       params.StartedAt,
		TotalProperties: params.TotalProperties,
		ReturnVisit:     params.ReturnVisit,
		LastActivityAt:  params.StartedAt,
		CreatedAt:       params.StartedAt,
	}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeRepo) GetSession(_ context.Context, id uuid.UUID) (repository.LinkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return repository.LinkSession{}, repository.ErrNotFound
	}
	return sess, nil
}

func (f *fakeRepo) UpdateSessionSummary(_ context.Context, s repository.LinkSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[s.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.DurationSeconds = s.DurationSeconds
	stored.PropertiesViewed = s.PropertiesViewed
	stored.PropertiesLiked = s.PropertiesLiked
	stored.PropertiesConsidered = s.PropertiesConsidered
	stored.PropertiesPassed = s.PropertiesPassed
	stored.DetailViewsOpened = s.DetailViewsOpened
	stored.AvgSecondsPerProperty = s.AvgSecondsPerProperty
	stored.Completed = s.Completed
	stored.LastActivityAt = s.LastActivityAt
	f.sessions[s.ID] = stored
	return nil
}

func (f *fakeRepo) FinalizeSession(_ context.Context, id uuid.UUID, endedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if sess.EndedAt != nil {
		return false, nil
	}
	sess.EndedAt = &endedAt
	f.sessions[id] = sess
	return true, nil
}

func (f *fakeRepo) ListSessionsByLink(_ context.Context, linkID uuid.UUID) ([]repository.LinkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.LinkSession
	for _, sess := range f.sessions {
		if sess.LinkID == linkID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountSessionsForLink(_ context.Context, linkID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, sess := range f.sessions {
		if sess.LinkID == linkID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ListStaleOpenSessions(_ context.Context, idleBefore time.Time, limit int) ([]repository.LinkSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.LinkSession
	for _, sess := range f.sessions {
		if sess.EndedAt == nil && !sess.LastActivityAt.After(idleBefore) {
			out = append(out, sess)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertInteraction(_ context.Context, params repository.InsertInteractionParams) (repository.InteractionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event := repository.InteractionEvent{
		ID:         uuid.New(),
		SessionID:  params.SessionID,
		LinkID:     params.LinkID,
		PropertyID: params.PropertyID,
		Action:     params.Action,
		OccurredAt: params.OccurredAt,
		Metadata:   params.Metadata,
		CreatedAt:  time.Now(),
	}
	f.interactions[params.SessionID] = append(f.interactions[params.SessionID], event)
	return event, nil
}

func (f *fakeRepo) ListSessionInteractions(_ context.Context, sessionID uuid.UUID) ([]repository.InteractionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.InteractionEvent(nil), f.interactions[sessionID]...), nil
}

func (f *fakeRepo) CreateTasks(_ context.Context, drafts []repository.CreateTaskParams) ([]repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var created []repository.Task
	for _, draft := range drafts {
		if draft.MilestoneTag != nil {
			duplicate := false
			for _, existing := range f.tasks {
				if existing.DealID == draft.DealID && existing.MilestoneTag != nil && *existing.MilestoneTag == *draft.MilestoneTag {
					duplicate = true
					break
				}
			}
			if duplicate {
				continue
			}
		}
		task := repository.Task{
			ID:           uuid.New(),
			DealID:       draft.DealID,
			Title:        draft.Title,
			Description:  draft.Description,
			Type:         draft.Type,
			Priority:     draft.Priority,
			Status:       repository.TaskStatusPending,
			IsAutomated:  draft.IsAutomated,
			TriggerType:  draft.TriggerType,
			MilestoneTag: draft.MilestoneTag,
			DueDate:      draft.DueDate,
			CreatedAt:    time.Now(),
		}
		f.tasks = append(f.tasks, task)
		created = append(created, task)
	}
	return created, nil
}

func (f *fakeRepo) GetTask(_ context.Context, id uuid.UUID) (repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.ID == id {
			return task, nil
		}
	}
	return repository.Task{}, repository.ErrNotFound
}

func (f *fakeRepo) ListDealTasks(_ context.Context, dealID uuid.UUID, onlyOpen bool) ([]repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Task
	for _, task := range f.tasks {
		if task.DealID != dealID {
			continue
		}
		if onlyOpen && task.Status != repository.TaskStatusPending {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (f *fakeRepo) SetTaskStatus(_ context.Context, id uuid.UUID, status string, at time.Time) (repository.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, task := range f.tasks {
		if task.ID != id {
			continue
		}
		if task.Status != repository.TaskStatusPending {
			return repository.Task{}, repository.ErrVersionConflict
		}
		task.Status = status
		if status == repository.TaskStatusCompleted {
			task.CompletedAt = &at
		}
		f.tasks[i] = task
		return task, nil
	}
	return repository.Task{}, repository.ErrNotFound
}

func (f *fakeRepo) ListMilestoneTags(_ context.Context, dealID uuid.UUID) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tags := make(map[string]bool)
	for _, task := range f.tasks {
		if task.DealID == dealID && task.MilestoneTag != nil {
			tags[*task.MilestoneTag] = true
		}
	}
	return tags, nil
}

func (f *fakeRepo) RecordMilestones(_ context.Context, dealID uuid.UUID, milestones []string, score int) ([]repository.DealMilestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failMilestoneWrites > 0 {
		f.failMilestoneWrites--
		return nil, errors.New("milestone write failed")
	}

	existing := f.milestones[dealID]
	if existing == nil {
		existing = make(map[string]repository.DealMilestone)
		f.milestones[dealID] = existing
	}

	var recorded []repository.DealMilestone
	for _, name := range milestones {
		if _, ok := existing[name]; ok {
			continue
		}
		m := repository.DealMilestone{
			ID:        uuid.New(),
			DealID:    dealID,
			Milestone: name,
			Score:     score,
			CreatedAt: time.Now(),
		}
		existing[name] = m
		recorded = append(recorded, m)
	}
	return recorded, nil
}

func (f *fakeRepo) ListDealMilestones(_ context.Context, dealID uuid.UUID) ([]repository.DealMilestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.DealMilestone
	for _, m := range f.milestones[dealID] {
		out = append(out, m)
	}
	return out, nil
}

var _ repository.EngagementRepository = (*fakeRepo)(nil)
