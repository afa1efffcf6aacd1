package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// DealMilestone records a first-time score or stage crossing for a deal. The
// unique (deal_id, milestone) constraint makes recording idempotent.
type DealMilestone struct {
	ID        uuid.UUID
	DealID    uuid.UUID
	Milestone string
	Score     int
	CreatedAt time.Time
}

// RecordMilestones inserts the newly crossed milestones. Already-recorded
// milestones are skipped and excluded from the returned slice, so the caller
// learns which crossings were genuinely first-time even under concurrency.
func (r *Repository) RecordMilestones(ctx context.Context, dealID uuid.UUID, milestones []string, score int) ([]DealMilestone, error) {
	recorded := make([]DealMilestone, 0, len(milestones))
	for _, name := range milestones {
		var m DealMilestone
		err := r.pool.QueryRow(ctx, `
			INSERT INTO deal_milestones (deal_id, milestone, score)
			VALUES ($1, $2, $3)
			ON CONFLICT (deal_id, milestone) DO NOTHING
			RETURNING id, deal_id, milestone, score, created_at
		`, dealID, name, score).Scan(&m.ID, &m.DealID, &m.Milestone, &m.Score, &m.CreatedAt)
		if err != nil {
			if isNoRows(err) {
				continue // a concurrent evaluation recorded it first
			}
			return recorded, err
		}
		recorded = append(recorded, m)
	}
	return recorded, nil
}

// ListDealMilestones returns all milestones recorded for a deal, oldest first.
func (r *Repository) ListDealMilestones(ctx context.Context, dealID uuid.UUID) ([]DealMilestone, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, milestone, score, created_at
		FROM deal_milestones
		WHERE deal_id = $1
		ORDER BY created_at ASC
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	milestones := make([]DealMilestone, 0)
	for rows.Next() {
		var m DealMilestone
		if err := rows.Scan(&m.ID, &m.DealID, &m.Milestone, &m.Score, &m.CreatedAt); err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}
