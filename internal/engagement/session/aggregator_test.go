package session

import (
	"testing"
	"time"

	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/platform/apperr"

	"github.com/google/uuid"
)

var aggNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func event(propertyID uuid.UUID, action string, at time.Time) repository.InteractionEvent {
	return repository.InteractionEvent{
		ID:         uuid.New(),
		PropertyID: propertyID,
		Action:     action,
		OccurredAt: at,
	}
}

func TestValidateEvent(t *testing.T) {
	propID := uuid.New()

	cases := []struct {
		name       string
		action     string
		propertyID uuid.UUID
		occurredAt time.Time
		wantErr    bool
	}{
		{"valid view", repository.ActionView, propID, aggNow, false},
		{"unknown action", "teleport", propID, aggNow, true},
		{"nil property", repository.ActionLike, uuid.Nil, aggNow, true},
		{"zero timestamp", repository.ActionLike, propID, time.Time{}, true},
		{"slight clock skew tolerated", repository.ActionView, propID, aggNow.Add(4 * time.Minute), false},
		{"far future rejected", repository.ActionView, propID, aggNow.Add(10 * time.Minute), true},
	}

	for _, tc := range cases {
		err := ValidateEvent(tc.action, tc.propertyID, tc.occurredAt, aggNow)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tc.wantErr && apperr.GetKind(err) != apperr.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestAggregateCountsDistinctProperties(t *testing.T) {
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	start := aggNow.Add(-10 * time.Minute)

	s := repository.LinkSession{
		StartedAt:       start,
		TotalProperties: 10,
	}

	events := []repository.InteractionEvent{
		event(p1, repository.ActionView, start.Add(time.Minute)),
		event(p1, repository.ActionView, start.Add(2*time.Minute)), // repeat view, same property
		event(p2, repository.ActionLike, start.Add(3*time.Minute)), // like implies viewed
		event(p3, repository.ActionDetail, start.Add(4*time.Minute)),
		event(p3, repository.ActionDetail, start.Add(5*time.Minute)), // detail counts every open
	}

	got := Aggregate(s, events, aggNow)

	if got.PropertiesViewed != 3 {
		t.Fatalf("expected 3 distinct viewed, got %d", got.PropertiesViewed)
	}
	if got.PropertiesLiked != 1 {
		t.Fatalf("expected 1 liked, got %d", got.PropertiesLiked)
	}
	if got.DetailViewsOpened != 2 {
		t.Fatalf("expected 2 detail opens, got %d", got.DetailViewsOpened)
	}
	if !got.LastActivityAt.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("expected last activity at final event, got %v", got.LastActivityAt)
	}
}

func TestAggregateLikeAndDislikeDisplaceEachOther(t *testing.T) {
	p := uuid.New()
	start := aggNow.Add(-10 * time.Minute)
	s := repository.LinkSession{StartedAt: start, TotalProperties: 5}

	// Dislike then like: the later signal wins, the earlier one is removed.
	got := Aggregate(s, []repository.InteractionEvent{
		event(p, repository.ActionDislike, start.Add(time.Minute)),
		event(p, repository.ActionLike, start.Add(2*time.Minute)),
	}, aggNow)

	if got.PropertiesLiked != 1 || got.PropertiesPassed != 0 {
		t.Fatalf("expected like to displace dislike, got liked=%d passed=%d", got.PropertiesLiked, got.PropertiesPassed)
	}

	// And the reverse.
	got = Aggregate(s, []repository.InteractionEvent{
		event(p, repository.ActionLike, start.Add(time.Minute)),
		event(p, repository.ActionDislike, start.Add(2*time.Minute)),
	}, aggNow)

	if got.PropertiesLiked != 0 || got.PropertiesPassed != 1 {
		t.Fatalf("expected dislike to displace like, got liked=%d passed=%d", got.PropertiesLiked, got.PropertiesPassed)
	}
}

func TestAggregateViewedCappedAtCollectionSize(t *testing.T) {
	start := aggNow.Add(-10 * time.Minute)
	s := repository.LinkSession{StartedAt: start, TotalProperties: 2}

	events := []repository.InteractionEvent{
		event(uuid.New(), repository.ActionView, start.Add(time.Minute)),
		event(uuid.New(), repository.ActionView, start.Add(2*time.Minute)),
		event(uuid.New(), repository.ActionView, start.Add(3*time.Minute)),
	}

	got := Aggregate(s, events, aggNow)

	if got.PropertiesViewed != 2 {
		t.Fatalf("expected viewed capped at 2, got %d", got.PropertiesViewed)
	}
	if !got.Completed {
		t.Fatal("expected session to be completed")
	}
}

func TestAggregateDurationAndAverageDwell(t *testing.T) {
	start := aggNow.Add(-5 * time.Minute)
	s := repository.LinkSession{StartedAt: start, TotalProperties: 10}

	got := Aggregate(s, []repository.InteractionEvent{
		event(uuid.New(), repository.ActionView, start.Add(time.Minute)),
		event(uuid.New(), repository.ActionView, start.Add(2*time.Minute)),
	}, aggNow)

	if got.DurationSeconds != 300 {
		t.Fatalf("expected 300s duration for an open session, got %d", got.DurationSeconds)
	}
	if got.AvgSecondsPerProperty != 150 {
		t.Fatalf("expected 150s average dwell, got %v", got.AvgSecondsPerProperty)
	}
	if got.Completed {
		t.Fatal("did not expect completion at 2 of 10")
	}
}

func TestAggregateEndedSessionUsesEndTime(t *testing.T) {
	start := aggNow.Add(-time.Hour)
	ended := start.Add(2 * time.Minute)
	s := repository.LinkSession{StartedAt: start, EndedAt: &ended, TotalProperties: 10}

	got := Aggregate(s, nil, aggNow)

	if got.DurationSeconds != 120 {
		t.Fatalf("expected duration from end time, got %d", got.DurationSeconds)
	}
	if got.PropertiesViewed != 0 || got.AvgSecondsPerProperty != 0 {
		t.Fatalf("expected empty summary for no events, got %+v", got)
	}
	if !got.LastActivityAt.Equal(start) {
		t.Fatalf("expected last activity to fall back to session start, got %v", got.LastActivityAt)
	}
}
