package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Task statuses and the automated trigger types that produced them.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusDismissed = "dismissed"
)

// Task is a unit of agent follow-up work. CompletedAt is set iff the status
// is completed. Automated tasks carry a milestone tag; a partial unique index
// on (deal_id, milestone_tag) backs the at-most-one-per-milestone guarantee.
type Task struct {
	ID           uuid.UUID
	DealID       uuid.UUID
	Title        string
	Description  string
	Type         string
	Priority     string
	Status       string
	IsAutomated  bool
	TriggerType  string
	MilestoneTag *string
	DueDate      time.Time
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

const taskColumns = `id, deal_id, title, description, task_type, priority, status,
	is_automated, trigger_type, milestone_tag, due_date, created_at, completed_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.DealID, &t.Title, &t.Description, &t.Type, &t.Priority, &t.Status,
		&t.IsAutomated, &t.TriggerType, &t.MilestoneTag, &t.DueDate, &t.CreatedAt, &t.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

type CreateTaskParams struct {
	DealID       uuid.UUID
	Title        string
	Description  string
	Type         string
	Priority     string
	IsAutomated  bool
	TriggerType  string
	MilestoneTag *string
	DueDate      time.Time
}

// CreateTasks inserts the generated task drafts. Drafts whose milestone tag
// already exists for the deal are silently skipped (ON CONFLICT DO NOTHING),
// so a lost dedup race still cannot produce duplicates. Returns the tasks
// actually inserted.
func (r *Repository) CreateTasks(ctx context.Context, drafts []CreateTaskParams) ([]Task, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	created := make([]Task, 0, len(drafts))
	for _, draft := range drafts {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO tasks (deal_id, title, description, task_type, priority, is_automated, trigger_type, milestone_tag, due_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (deal_id, milestone_tag) WHERE milestone_tag IS NOT NULL DO NOTHING
			RETURNING `+taskColumns,
			draft.DealID, draft.Title, draft.Description, draft.Type, draft.Priority,
			draft.IsAutomated, draft.TriggerType, draft.MilestoneTag, draft.DueDate,
		)
		task, err := scanTask(row)
		if errors.Is(err, ErrNotFound) {
			continue // conflict: another evaluation already emitted this milestone task
		}
		if err != nil {
			return created, err
		}
		created = append(created, task)
	}
	return created, nil
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// ListDealTasks returns a deal's tasks, soonest due first.
func (r *Repository) ListDealTasks(ctx context.Context, dealID uuid.UUID, onlyOpen bool) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE deal_id = $1 ORDER BY due_date ASC, created_at ASC`
	if onlyOpen {
		query = `SELECT ` + taskColumns + ` FROM tasks WHERE deal_id = $1 AND status = 'pending' ORDER BY due_date ASC, created_at ASC`
	}

	rows, err := r.pool.Query(ctx, query, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// SetTaskStatus moves a pending task to completed or dismissed. CompletedAt
// is set only for completion. Non-pending tasks are never mutated.
func (r *Repository) SetTaskStatus(ctx context.Context, id uuid.UUID, status string, at time.Time) (Task, error) {
	var completedAt *time.Time
	if status == TaskStatusCompleted {
		completedAt = &at
	}

	task, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $2, completed_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+taskColumns,
		id, status, completedAt,
	))
	if errors.Is(err, ErrNotFound) {
		// Either the task does not exist or it already left pending.
		if _, getErr := r.GetTask(ctx, id); getErr != nil {
			return Task{}, getErr
		}
		return Task{}, ErrVersionConflict
	}
	return task, err
}

// ListMilestoneTags returns the milestone tags already persisted for a deal,
// across both tasks and recorded milestones. This is the dedup set the
// automation engine checks before emitting new drafts.
func (r *Repository) ListMilestoneTags(ctx context.Context, dealID uuid.UUID) (map[string]bool, error) {
	tags := make(map[string]bool)

	rows, err := r.pool.Query(ctx, `
		SELECT milestone_tag FROM tasks WHERE deal_id = $1 AND milestone_tag IS NOT NULL
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags[tag] = true
	}
	return tags, rows.Err()
}
