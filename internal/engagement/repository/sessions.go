package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LinkSession is one continuous client browsing interaction with a link.
// The summary columns are always a full recomputation from the session's
// interaction events, never a delta.
type LinkSession struct {
	ID                    uuid.UUID
	LinkID                uuid.UUID
	DealID                uuid.UUID
	StartedAt             time.Time
	EndedAt               *time.Time
	DurationSeconds       int
	TotalProperties       int
	PropertiesViewed      int
	PropertiesLiked       int
	PropertiesConsidered  int
	PropertiesPassed      int
	DetailViewsOpened     int
	AvgSecondsPerProperty float64
	Completed             bool
	ReturnVisit           bool
	LastActivityAt        time.Time
	CreatedAt             time.Time
}

const sessionColumns = `id, link_id, deal_id, started_at, ended_at, duration_seconds,
	total_properties, properties_viewed, properties_liked, properties_considered,
	properties_passed, detail_views_opened, avg_seconds_per_property,
	completed, return_visit, last_activity_at, created_at`

func scanSession(row pgx.Row) (LinkSession, error) {
	var s LinkSession
	err := row.Scan(
		&s.ID, &s.LinkID, &s.DealID, &s.StartedAt, &s.EndedAt, &s.DurationSeconds,
		&s.TotalProperties, &s.PropertiesViewed, &s.PropertiesLiked, &s.PropertiesConsidered,
		&s.PropertiesPassed, &s.DetailViewsOpened, &s.AvgSecondsPerProperty,
		&s.Completed, &s.ReturnVisit, &s.LastActivityAt, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LinkSession{}, ErrNotFound
	}
	return s, err
}

type CreateSessionParams struct {
	SessionID       uuid.UUID
	LinkID          uuid.UUID
	DealID          uuid.UUID
	StartedAt       time.Time
	TotalProperties int
	ReturnVisit     bool
}

func (r *Repository) CreateSession(ctx context.Context, params CreateSessionParams) (LinkSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		INSERT INTO link_sessions (id, link_id, deal_id, started_at, total_properties, return_visit, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $4)
		RETURNING `+sessionColumns,
		params.SessionID, params.LinkID, params.DealID, params.StartedAt, params.TotalProperties, params.ReturnVisit,
	))
}

func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (LinkSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM link_sessions WHERE id = $1`, id))
}

// UpdateSessionSummary persists a freshly recomputed summary for an open or
// closed session.
func (r *Repository) UpdateSessionSummary(ctx context.Context, s LinkSession) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE link_sessions
		SET duration_seconds = $2, properties_viewed = $3, properties_liked = $4,
			properties_considered = $5, properties_passed = $6, detail_views_opened = $7,
			avg_seconds_per_property = $8, completed = $9, last_activity_at = $10
		WHERE id = $1
	`, s.ID, s.DurationSeconds, s.PropertiesViewed, s.PropertiesLiked,
		s.PropertiesConsidered, s.PropertiesPassed, s.DetailViewsOpened,
		s.AvgSecondsPerProperty, s.Completed, s.LastActivityAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FinalizeSession sets the session end time exactly once. Finalizing an
// already-finalized session is a no-op and reports false, which makes the
// cleanup sweep safe to run concurrently with live processing.
func (r *Repository) FinalizeSession(ctx context.Context, id uuid.UUID, endedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE link_sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL
	`, id, endedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListSessionsByLink returns all sessions for a link, most recently started first.
func (r *Repository) ListSessionsByLink(ctx context.Context, linkID uuid.UUID) ([]LinkSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM link_sessions
		WHERE link_id = $1
		ORDER BY started_at DESC
	`, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]LinkSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *Repository) CountSessionsForLink(ctx context.Context, linkID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM link_sessions WHERE link_id = $1`, linkID).Scan(&count)
	return count, err
}

// ListStaleOpenSessions returns open sessions idle since before the cutoff,
// oldest first, for the inactivity finalization sweep.
func (r *Repository) ListStaleOpenSessions(ctx context.Context, idleBefore time.Time, limit int) ([]LinkSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+` FROM link_sessions
		WHERE ended_at IS NULL AND last_activity_at <= $1
		ORDER BY last_activity_at ASC
		LIMIT $2
	`, idleBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]LinkSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
