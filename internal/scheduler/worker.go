package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/internal/engagement/service"
	"swipelink_backend/platform/config"
	"swipelink_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dealInactivityWindow = 72 * time.Hour

// Worker consumes the delayed engagement jobs: per-session finalize checks
// and the batch inactivity sweep.
type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	repo         sessionStore
	orchestrator *service.Orchestrator
	client       *Client
	idleTimeout  time.Duration
	log          *logger.Logger
}

// sessionStore is the slice of the repository the finalize-check handler needs.
type sessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (repository.LinkSession, error)
}

type workerConfig interface {
	config.SchedulerConfig
	config.EngagementConfig
}

func NewWorker(cfg workerConfig, pool *pgxpool.Pool, orchestrator *service.Orchestrator, client *Client, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:       server,
		mux:          mux,
		repo:         repository.New(pool),
		orchestrator: orchestrator,
		client:       client,
		idleTimeout:  cfg.GetSessionInactivityTimeout(),
		log:          log,
	}

	mux.HandleFunc(TaskSessionFinalize, w.handleSessionFinalize)
	mux.HandleFunc(TaskInactivitySweep, w.handleInactivitySweep)

	return w, nil
}

// handleSessionFinalize ends a session that has gone idle. A session that
// saw activity since the check was scheduled gets a fresh check instead of
// being cut off mid-browse.
func (w *Worker) handleSessionFinalize(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSessionFinalizePayload(task)
	if err != nil {
		return err
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return err
	}

	sess, err := w.repo.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.EndedAt != nil {
		return nil
	}

	idleDeadline := sess.LastActivityAt.Add(w.idleTimeout)
	if time.Now().Before(idleDeadline) {
		if w.client != nil {
			return w.client.ScheduleSessionFinalize(ctx, sessionID, idleDeadline)
		}
		return nil
	}

	result, err := w.orchestrator.EndSession(ctx, sessionID, true)
	if err != nil {
		return err
	}
	if result.Finalized {
		w.log.Info("scheduler: finalized idle session", "sessionId", sessionID, "durationSeconds", result.Session.DurationSeconds)
	}
	return nil
}

func (w *Worker) handleInactivitySweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInactivitySweepPayload(task)
	if err != nil {
		return err
	}

	limit := payload.Limit
	if limit <= 0 {
		limit = 200
	}

	evaluated, err := w.orchestrator.SweepInactiveDeals(ctx, dealInactivityWindow, limit)
	if err != nil {
		return err
	}
	if evaluated > 0 {
		w.log.Info("scheduler: inactivity sweep evaluated deals", "count", evaluated)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
