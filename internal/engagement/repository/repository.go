package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when an optimistic deal update lost the
	// race against a concurrent writer. Callers re-read and retry the full
	// evaluation, not just the write.
	ErrVersionConflict = errors.New("deal version conflict")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Link is a shareable property collection handed to one client.
type Link struct {
	ID            uuid.UUID
	AgentID       uuid.UUID
	Name          string
	PropertyCount int
	SharedAt      *time.Time
	CreatedAt     time.Time
}

// Deal is the CRM record tracking one shared link's lifecycle with a client.
// Version backs optimistic concurrency; HighestScore is the lifetime
// high-water mark used for milestone gating.
type Deal struct {
	ID              uuid.UUID
	LinkID          uuid.UUID
	AgentID         uuid.UUID
	ClientID        *uuid.UUID
	ClientName      *string
	ClientPhone     *string
	ClientEmail     *string
	DealStage       string
	DealStatus      string
	EngagementScore int
	HighestScore    int
	Temperature     string
	SessionCount    int
	TotalTimeSpent  int
	LastActivityAt  *time.Time
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type CreateLinkParams struct {
	AgentID       uuid.UUID
	Name          string
	PropertyCount int
	Stage         string
	Status        string
	Temperature   string
}

// CreateLink inserts the link and its deal in one transaction; a deal exists
// from the moment the link does.
func (r *Repository) CreateLink(ctx context.Context, params CreateLinkParams) (Link, Deal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Link{}, Deal{}, err
	}
	defer tx.Rollback(ctx)

	var link Link
	err = tx.QueryRow(ctx, `
		INSERT INTO links (agent_id, name, property_count)
		VALUES ($1, $2, $3)
		RETURNING id, agent_id, name, property_count, shared_at, created_at
	`, params.AgentID, params.Name, params.PropertyCount).Scan(
		&link.ID, &link.AgentID, &link.Name, &link.PropertyCount, &link.SharedAt, &link.CreatedAt,
	)
	if err != nil {
		return Link{}, Deal{}, err
	}

	var deal Deal
	err = tx.QueryRow(ctx, `
		INSERT INTO deals (link_id, agent_id, deal_stage, deal_status, temperature)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, link_id, agent_id, client_id, client_name, client_phone, client_email,
			deal_stage, deal_status, engagement_score, highest_score, temperature,
			session_count, total_time_spent, last_activity_at, version, created_at, updated_at
	`, link.ID, params.AgentID, params.Stage, params.Status, params.Temperature).Scan(
		&deal.ID, &deal.LinkID, &deal.AgentID, &deal.ClientID, &deal.ClientName, &deal.ClientPhone, &deal.ClientEmail,
		&deal.DealStage, &deal.DealStatus, &deal.EngagementScore, &deal.HighestScore, &deal.Temperature,
		&deal.SessionCount, &deal.TotalTimeSpent, &deal.LastActivityAt, &deal.Version, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if err != nil {
		return Link{}, Deal{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Link{}, Deal{}, err
	}
	return link, deal, nil
}

const dealColumns = `id, link_id, agent_id, client_id, client_name, client_phone, client_email,
	deal_stage, deal_status, engagement_score, highest_score, temperature,
	session_count, total_time_spent, last_activity_at, version, created_at, updated_at`

func scanDeal(row pgx.Row) (Deal, error) {
	var deal Deal
	err := row.Scan(
		&deal.ID, &deal.LinkID, &deal.AgentID, &deal.ClientID, &deal.ClientName, &deal.ClientPhone, &deal.ClientEmail,
		&deal.DealStage, &deal.DealStatus, &deal.EngagementScore, &deal.HighestScore, &deal.Temperature,
		&deal.SessionCount, &deal.TotalTimeSpent, &deal.LastActivityAt, &deal.Version, &deal.CreatedAt, &deal.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deal{}, ErrNotFound
	}
	return deal, err
}

func (r *Repository) GetLink(ctx context.Context, id uuid.UUID) (Link, error) {
	var link Link
	err := r.pool.QueryRow(ctx, `
		SELECT id, agent_id, name, property_count, shared_at, created_at
		FROM links WHERE id = $1
	`, id).Scan(&link.ID, &link.AgentID, &link.Name, &link.PropertyCount, &link.SharedAt, &link.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, ErrNotFound
	}
	return link, err
}

// MarkLinkShared records the share moment once; repeating the call keeps the
// original timestamp.
func (r *Repository) MarkLinkShared(ctx context.Context, id uuid.UUID, sharedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE links SET shared_at = COALESCE(shared_at, $2) WHERE id = $1
	`, id, sharedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetDeal(ctx context.Context, id uuid.UUID) (Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
}

func (r *Repository) GetDealByLink(ctx context.Context, linkID uuid.UUID) (Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE link_id = $1`, linkID))
}

type UpdateDealEngagementParams struct {
	DealID          uuid.UUID
	ExpectedVersion int
	DealStage       string
	DealStatus      string
	EngagementScore int
	HighestScore    int
	Temperature     string
	SessionCount    int
	TotalTimeSpent  int
	// LastActivityAt is nil when the deal has no recorded client activity;
	// the column stays NULL and the inactivity sweep ignores the deal.
	LastActivityAt *time.Time
}

// UpdateDealEngagement writes an evaluation result guarded by the optimistic
// version column. A concurrent writer bumps the version and this call returns
// ErrVersionConflict; a vanished deal returns ErrNotFound.
func (r *Repository) UpdateDealEngagement(ctx context.Context, params UpdateDealEngagementParams) (Deal, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE deals
		SET deal_stage = $3, deal_status = $4, engagement_score = $5, highest_score = $6,
			temperature = $7, session_count = $8, total_time_spent = $9,
			last_activity_at = $10, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING `+dealColumns,
		params.DealID, params.ExpectedVersion, params.DealStage, params.DealStatus,
		params.EngagementScore, params.HighestScore, params.Temperature,
		params.SessionCount, params.TotalTimeSpent, params.LastActivityAt,
	)

	deal, err := scanDeal(row)
	if errors.Is(err, ErrNotFound) {
		// Distinguish a lost race from a missing deal.
		var exists bool
		checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deals WHERE id = $1)`, params.DealID).Scan(&exists)
		if checkErr != nil {
			return Deal{}, checkErr
		}
		if exists {
			return Deal{}, ErrVersionConflict
		}
		return Deal{}, ErrNotFound
	}
	return deal, err
}

// UpdateDealStage moves a deal's stage and status without touching the
// engagement fields. Used for non-scoring transitions: sharing a link,
// scheduling a showing, closing a deal.
func (r *Repository) UpdateDealStage(ctx context.Context, dealID uuid.UUID, stage, status string) (Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `
		UPDATE deals
		SET deal_stage = $2, deal_status = $3, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+dealColumns,
		dealID, stage, status,
	))
}

type ClientContact struct {
	ClientID *uuid.UUID
	Name     *string
	Phone    *string
	Email    *string
}

// IdentifyClient attaches client identity to a deal. Existing values win so a
// later anonymous session cannot blank out a known client.
func (r *Repository) IdentifyClient(ctx context.Context, dealID uuid.UUID, contact ClientContact) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals
		SET client_id = COALESCE(client_id, $2),
			client_name = COALESCE(client_name, $3),
			client_phone = COALESCE(client_phone, $4),
			client_email = COALESCE(client_email, $5),
			updated_at = now()
		WHERE id = $1
	`, dealID, contact.ClientID, contact.Name, contact.Phone, contact.Email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListInactiveDeals returns non-terminal deals whose last activity is at or
// before the cutoff. Deals with no recorded activity are skipped - they never
// had a session to go quiet on.
func (r *Repository) ListInactiveDeals(ctx context.Context, cutoff time.Time, limit int) ([]Deal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+dealColumns+`
		FROM deals
		WHERE last_activity_at IS NOT NULL
			AND last_activity_at <= $1
			AND deal_status NOT IN ('closed-won', 'closed-lost')
		ORDER BY last_activity_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := make([]Deal, 0)
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, deal)
	}
	return deals, rows.Err()
}
