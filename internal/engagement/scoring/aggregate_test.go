package scoring

import (
	"testing"
	"time"

	"swipelink_backend/internal/engagement/repository"
)

func TestScoreDealNoSessions(t *testing.T) {
	d := ScoreDeal(nil, scoreNow)

	if d.TotalScore != 0 {
		t.Fatalf("expected total 0, got %d", d.TotalScore)
	}
	if d.Sessions != 0 {
		t.Fatalf("expected 0 sessions, got %d", d.Sessions)
	}
	if d.Breakdown.Version == "" {
		t.Fatal("expected breakdown to carry the score version")
	}
}

func TestScoreDealSingleSessionCarriesFullWeight(t *testing.T) {
	// A short, stale session would get a tiny weight in a multi-session
	// blend; alone it must still contribute its full total.
	ended := scoreNow.Add(-10 * 24 * time.Hour)
	s := repository.LinkSession{
		StartedAt:        ended.Add(-time.Minute),
		EndedAt:          &ended,
		DurationSeconds:  60,
		TotalProperties:  10,
		PropertiesViewed: 10,
	}

	d := ScoreDeal([]repository.LinkSession{s}, scoreNow)
	single := Score(s, scoreNow)

	if d.TotalScore != single.TotalScore {
		t.Fatalf("expected deal total %d to equal session total, got %d", single.TotalScore, d.TotalScore)
	}
	if d.Sessions != 1 {
		t.Fatalf("expected 1 session, got %d", d.Sessions)
	}
}

func TestScoreDealRecentSessionDominates(t *testing.T) {
	// One hot recent session and one stale weak one: the weighted blend must
	// land much closer to the recent session's score than the plain mean.
	recent := repository.LinkSession{
		StartedAt:             scoreNow.Add(-time.Hour),
		DurationSeconds:       1200,
		TotalProperties:       10,
		PropertiesViewed:      10,
		PropertiesLiked:       5,
		DetailViewsOpened:     6,
		AvgSecondsPerProperty: 120,
		ReturnVisit:           true,
	}
	staleEnd := scoreNow.Add(-40 * 24 * time.Hour)
	stale := repository.LinkSession{
		StartedAt:        staleEnd.Add(-time.Minute),
		EndedAt:          &staleEnd,
		DurationSeconds:  60,
		TotalProperties:  10,
		PropertiesViewed: 1,
	}

	d := ScoreDeal([]repository.LinkSession{stale, recent}, scoreNow)

	recentScore := Score(recent, scoreNow).TotalScore
	staleScore := Score(stale, scoreNow).TotalScore
	plainMean := (recentScore + staleScore) / 2

	if d.TotalScore <= plainMean {
		t.Fatalf("expected weighted total above plain mean %d, got %d", plainMean, d.TotalScore)
	}
	if d.TotalScore > recentScore {
		t.Fatalf("expected weighted total at most %d, got %d", recentScore, d.TotalScore)
	}
}

func TestScoreDealBreakdownIsLatestSession(t *testing.T) {
	older := repository.LinkSession{
		StartedAt:        scoreNow.Add(-48 * time.Hour),
		TotalProperties:  10,
		PropertiesViewed: 10,
		PropertiesLiked:  5,
	}
	newer := repository.LinkSession{
		StartedAt:        scoreNow.Add(-time.Hour),
		TotalProperties:  10,
		PropertiesViewed: 2,
	}

	// Input order must not matter; recency of StartedAt does.
	d := ScoreDeal([]repository.LinkSession{older, newer}, scoreNow)

	want := Score(newer, scoreNow)
	if d.Breakdown != want {
		t.Fatalf("expected breakdown of most recently started session %+v, got %+v", want, d.Breakdown)
	}
}

func TestScoreDealAllStaleFallsBackToPlainMean(t *testing.T) {
	// Two idle sessions: zero recency and zero duration give zero weight, so
	// the blend falls back to the unweighted mean instead of erasing history.
	end1 := scoreNow.Add(-60 * 24 * time.Hour)
	end2 := scoreNow.Add(-90 * 24 * time.Hour)
	s1 := repository.LinkSession{
		StartedAt:        end1,
		EndedAt:          &end1,
		TotalProperties:  10,
		PropertiesViewed: 10,
	}
	s2 := repository.LinkSession{
		StartedAt:        end2,
		EndedAt:          &end2,
		TotalProperties:  10,
		PropertiesViewed: 2,
	}

	d := ScoreDeal([]repository.LinkSession{s1, s2}, scoreNow)

	t1 := Score(s1, scoreNow).TotalScore
	t2 := Score(s2, scoreNow).TotalScore
	want := (t1 + t2 + 1) / 2 // rounded mean

	if d.TotalScore != want {
		t.Fatalf("expected unweighted mean %d, got %d", want, d.TotalScore)
	}
}
