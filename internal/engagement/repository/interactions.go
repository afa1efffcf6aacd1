package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Interaction actions recorded against a session. The scoring and stage logic
// never inspects Metadata; it is carried through to the persisted record only.
const (
	ActionView     = "view"
	ActionLike     = "like"
	ActionDislike  = "dislike"
	ActionConsider = "consider"
	ActionDetail   = "detail"
)

var knownActions = map[string]struct{}{
	ActionView:     {},
	ActionLike:     {},
	ActionDislike:  {},
	ActionConsider: {},
	ActionDetail:   {},
}

// IsKnownAction reports whether the action is part of the interaction vocabulary.
func IsKnownAction(action string) bool {
	_, ok := knownActions[action]
	return ok
}

// InteractionEvent is one append-only client interaction within a session.
type InteractionEvent struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	LinkID     uuid.UUID
	PropertyID uuid.UUID
	Action     string
	OccurredAt time.Time
	Metadata   map[string]string
	CreatedAt  time.Time
}

type InsertInteractionParams struct {
	SessionID  uuid.UUID
	LinkID     uuid.UUID
	PropertyID uuid.UUID
	Action     string
	OccurredAt time.Time
	Metadata   map[string]string
}

func (r *Repository) InsertInteraction(ctx context.Context, params InsertInteractionParams) (InteractionEvent, error) {
	var metadata []byte
	if len(params.Metadata) > 0 {
		encoded, err := json.Marshal(params.Metadata)
		if err != nil {
			return InteractionEvent{}, err
		}
		metadata = encoded
	}

	var event InteractionEvent
	var rawMetadata []byte
	err := r.pool.QueryRow(ctx, `
		INSERT INTO interaction_events (session_id, link_id, property_id, action, occurred_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, session_id, link_id, property_id, action, occurred_at, metadata, created_at
	`, params.SessionID, params.LinkID, params.PropertyID, params.Action, params.OccurredAt, metadata).Scan(
		&event.ID, &event.SessionID, &event.LinkID, &event.PropertyID, &event.Action,
		&event.OccurredAt, &rawMetadata, &event.CreatedAt,
	)
	if err != nil {
		return InteractionEvent{}, err
	}

	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &event.Metadata); err != nil {
			event.Metadata = nil
		}
	}
	return event, nil
}

// ListSessionInteractions returns a session's events in arrival order, the
// input shape the session aggregator folds over.
func (r *Repository) ListSessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]InteractionEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, link_id, property_id, action, occurred_at, metadata, created_at
		FROM interaction_events
		WHERE session_id = $1
		ORDER BY occurred_at ASC, created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]InteractionEvent, 0)
	for rows.Next() {
		var event InteractionEvent
		var rawMetadata []byte
		if err := rows.Scan(
			&event.ID, &event.SessionID, &event.LinkID, &event.PropertyID, &event.Action,
			&event.OccurredAt, &rawMetadata, &event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(rawMetadata) > 0 {
			if err := json.Unmarshal(rawMetadata, &event.Metadata); err != nil {
				event.Metadata = nil
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
