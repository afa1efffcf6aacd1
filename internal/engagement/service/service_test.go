package service

import (
	"context"
	"testing"
	"time"

	"swipelink_backend/internal/engagement/automation"
	"swipelink_backend/internal/engagement/domain"
	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/internal/events"
	"swipelink_backend/internal/notification/sse"
	"swipelink_backend/platform/apperr"
	"swipelink_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestService(repo *fakeRepo) (*Service, *Orchestrator) {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	sseService := sse.New()
	o := NewOrchestrator(repo, automation.NewEngine(automation.DefaultConfig()), bus, sseService, log)
	o.now = func() time.Time { return testNow }
	svc := NewService(repo, o, bus, sseService, log)
	svc.now = o.now
	return svc, o
}

type fakeScheduler struct {
	scheduled []uuid.UUID
	runAts    []time.Time
}

func (f *fakeScheduler) ScheduleSessionFinalize(_ context.Context, sessionID uuid.UUID, runAt time.Time) error {
	f.scheduled = append(f.scheduled, sessionID)
	f.runAts = append(f.runAts, runAt)
	return nil
}

func TestCreateLinkSeedsDealAndPreparationTask(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	result, err := svc.CreateLink(context.Background(), CreateLinkInput{
		AgentID:       uuid.New(),
		Name:          "Family homes north",
		PropertyCount: 12,
	})
	if err != nil {
		t.Fatalf("create link: %v", err)
	}

	if result.Deal.DealStage != domain.StageCreated {
		t.Fatalf("expected created stage, got %q", result.Deal.DealStage)
	}
	if result.Deal.DealStatus != domain.StatusActive {
		t.Fatalf("expected active status, got %q", result.Deal.DealStatus)
	}
	if result.Deal.Temperature != domain.TemperatureCold {
		t.Fatalf("expected cold temperature, got %q", result.Deal.Temperature)
	}

	found := false
	for _, task := range result.Tasks {
		if task.TriggerType == automation.TriggerLinkCreated {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a preparation task from the link_created trigger")
	}
}

func TestCreateLinkValidation(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)

	if _, err := svc.CreateLink(context.Background(), CreateLinkInput{Name: "x", PropertyCount: 1}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for missing agent, got %v", err)
	}
	if _, err := svc.CreateLink(context.Background(), CreateLinkInput{AgentID: uuid.New(), Name: "x", PropertyCount: 0}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty collection, got %v", err)
	}
}

func TestShareLinkAdvancesStageOnce(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	link, _ := seedDeal(t, repo, domain.StageCreated)

	deal, err := svc.ShareLink(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("share link: %v", err)
	}
	if deal.DealStage != domain.StageShared {
		t.Fatalf("expected shared stage, got %q", deal.DealStage)
	}

	stored, _ := repo.GetLink(context.Background(), link.ID)
	if stored.SharedAt == nil {
		t.Fatal("expected a shared-at timestamp")
	}
	firstSharedAt := *stored.SharedAt

	// Re-sharing keeps the original timestamp and drafts no second task.
	if _, err := svc.ShareLink(context.Background(), link.ID); err != nil {
		t.Fatalf("second share: %v", err)
	}
	stored, _ = repo.GetLink(context.Background(), link.ID)
	if !stored.SharedAt.Equal(firstSharedAt) {
		t.Fatal("expected the original share timestamp to stick")
	}

	deal, _ = repo.GetDealByLink(context.Background(), link.ID)
	tasks, _ := repo.ListDealTasks(context.Background(), deal.ID, false)
	shareTasks := 0
	for _, task := range tasks {
		if task.TriggerType == automation.TriggerLinkShared {
			shareTasks++
		}
	}
	if shareTasks != 1 {
		t.Fatalf("expected exactly one link_shared task, got %d", shareTasks)
	}
}

func TestStartSessionFirstVisitAdvancesToAccessed(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	link, _ := seedDeal(t, repo, domain.StageShared)

	first, err := svc.StartSession(context.Background(), StartSessionInput{LinkID: link.ID})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if first.ReturnVisit {
		t.Fatal("expected first session to not be a return visit")
	}
	if first.Deal.DealStage != domain.StageAccessed {
		t.Fatalf("expected accessed stage, got %q", first.Deal.DealStage)
	}
	if first.Session.TotalProperties != link.PropertyCount {
		t.Fatalf("expected session to inherit the collection size, got %d", first.Session.TotalProperties)
	}

	second, err := svc.StartSession(context.Background(), StartSessionInput{LinkID: link.ID})
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if !second.ReturnVisit {
		t.Fatal("expected second session to be a return visit")
	}
}

func TestStartSessionSchedulesIdleCheckAndIdentifiesClient(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	link, deal := seedDeal(t, repo, domain.StageShared)

	sched := &fakeScheduler{}
	svc.SetSessionScheduler(sched, 30*time.Minute)

	result, err := svc.StartSession(context.Background(), StartSessionInput{
		LinkID: link.ID,
		Client: ClientContext{Name: "Jamie Visser", Phone: "06 1234 5678", Email: "jamie@example.com"},
	})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if len(sched.scheduled) != 1 || sched.scheduled[0] != result.Session.ID {
		t.Fatalf("expected one idle check for the new session, got %v", sched.scheduled)
	}
	if !sched.runAts[0].Equal(testNow.Add(30 * time.Minute)) {
		t.Fatalf("expected idle check at start+timeout, got %v", sched.runAts[0])
	}

	stored, _ := repo.GetDeal(context.Background(), deal.ID)
	if stored.ClientName == nil || *stored.ClientName != "Jamie Visser" {
		t.Fatalf("expected client name on the deal, got %v", stored.ClientName)
	}
	if stored.ClientPhone == nil || *stored.ClientPhone == "" {
		t.Fatal("expected a normalized client phone on the deal")
	}
}

func TestCloseDealIsTerminalAndManual(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	_, deal := seedDeal(t, repo, domain.StageAdvanced)

	closed, err := svc.CloseDeal(context.Background(), deal.ID, true)
	if err != nil {
		t.Fatalf("close deal: %v", err)
	}
	if closed.DealStage != domain.StageClosed || closed.DealStatus != domain.StatusClosedWon {
		t.Fatalf("expected closed-won, got %q/%q", closed.DealStage, closed.DealStatus)
	}

	if _, err := svc.CloseDeal(context.Background(), deal.ID, false); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double close, got %v", err)
	}
}

func TestGetDealOverview(t *testing.T) {
	repo := newFakeRepo()
	svc, o := newTestService(repo)
	link, deal := seedDeal(t, repo, domain.StageAccessed)
	storeHotSession(t, repo, link, deal)

	if _, err := o.evaluateDeal(context.Background(), deal.ID, evalOptions{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	overview, err := svc.GetDealOverview(context.Background(), deal.ID)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if len(overview.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(overview.Sessions))
	}
	if len(overview.Milestones) == 0 {
		t.Fatal("expected recorded milestones")
	}
	if len(overview.OpenTasks) == 0 {
		t.Fatal("expected open tasks")
	}
	if overview.Score.TotalScore != overview.Deal.EngagementScore {
		t.Fatalf("expected overview score %d to match stored deal score %d", overview.Score.TotalScore, overview.Deal.EngagementScore)
	}
}

func TestResolveTask(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo)
	_, deal := seedDeal(t, repo, domain.StageAccessed)

	created, err := repo.CreateTasks(context.Background(), []repository.CreateTaskParams{{
		DealID:   deal.ID,
		Title:    "Call the client",
		Type:     "call",
		Priority: automation.PriorityHigh,
		DueDate:  testNow,
	}})
	if err != nil || len(created) != 1 {
		t.Fatalf("seed task: %v", err)
	}

	if _, err := svc.ResolveTask(context.Background(), created[0].ID, "postponed"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	task, err := svc.ResolveTask(context.Background(), created[0].ID, repository.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if task.Status != repository.TaskStatusCompleted || task.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", task)
	}

	if _, err := svc.ResolveTask(context.Background(), created[0].ID, repository.TaskStatusDismissed); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict resolving a non-pending task, got %v", err)
	}
}
