// Package session reduces a stream of client interaction events into a
// session summary. The fold is pure: the same events always produce the same
// summary, and every recomputation starts from scratch rather than patching
// a previous result.
package session

import (
	"math"
	"time"

	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/platform/apperr"

	"github.com/google/uuid"
)

// maxClockSkew is how far into the future an event timestamp may lie before
// the event is rejected as malformed.
const maxClockSkew = 5 * time.Minute

// ValidateEvent rejects malformed interaction input before it can touch a
// session summary. Failing closed here is what keeps the fold total: every
// event that reaches Aggregate is well-formed.
func ValidateEvent(action string, propertyID uuid.UUID, occurredAt time.Time, now time.Time) error {
	if !repository.IsKnownAction(action) {
		return apperr.Validation("unknown interaction action: " + action)
	}
	if propertyID == uuid.Nil {
		return apperr.Validation("interaction requires a property id")
	}
	if occurredAt.IsZero() {
		return apperr.Validation("interaction timestamp is required")
	}
	if occurredAt.After(now.Add(maxClockSkew)) {
		return apperr.Validation("interaction timestamp lies in the future")
	}
	return nil
}

// Aggregate folds a session's interaction events into a fresh summary. The
// session row provides identity, timing, and collection size; only the
// derived summary fields are recomputed. Events are counted per distinct
// property for view/like/consider/pass so repeated swipes on the same card
// do not inflate the counts; detail opens count every occurrence.
func Aggregate(s repository.LinkSession, events []repository.InteractionEvent, now time.Time) repository.LinkSession {
	viewed := make(map[uuid.UUID]struct{})
	liked := make(map[uuid.UUID]struct{})
	considered := make(map[uuid.UUID]struct{})
	passed := make(map[uuid.UUID]struct{})
	detailViews := 0

	lastActivity := s.StartedAt
	for _, event := range events {
		if event.OccurredAt.After(lastActivity) {
			lastActivity = event.OccurredAt
		}

		switch event.Action {
		case repository.ActionView:
			viewed[event.PropertyID] = struct{}{}
		case repository.ActionLike:
			viewed[event.PropertyID] = struct{}{}
			liked[event.PropertyID] = struct{}{}
			delete(passed, event.PropertyID)
		case repository.ActionDislike:
			viewed[event.PropertyID] = struct{}{}
			passed[event.PropertyID] = struct{}{}
			delete(liked, event.PropertyID)
		case repository.ActionConsider:
			viewed[event.PropertyID] = struct{}{}
			considered[event.PropertyID] = struct{}{}
		case repository.ActionDetail:
			viewed[event.PropertyID] = struct{}{}
			detailViews++
		}
	}

	s.PropertiesViewed = len(viewed)
	if s.TotalProperties > 0 && s.PropertiesViewed > s.TotalProperties {
		s.PropertiesViewed = s.TotalProperties
	}
	s.PropertiesLiked = len(liked)
	s.PropertiesConsidered = len(considered)
	s.PropertiesPassed = len(passed)
	s.DetailViewsOpened = detailViews
	s.LastActivityAt = lastActivity

	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	duration := int(math.Round(end.Sub(s.StartedAt).Seconds()))
	if duration < 0 {
		duration = 0
	}
	s.DurationSeconds = duration

	if s.PropertiesViewed > 0 {
		s.AvgSecondsPerProperty = float64(duration) / float64(s.PropertiesViewed)
	} else {
		s.AvgSecondsPerProperty = 0
	}

	s.Completed = s.TotalProperties > 0 && s.PropertiesViewed >= s.TotalProperties

	return s
}
