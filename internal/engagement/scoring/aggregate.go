package scoring

import (
	"math"
	"time"

	"swipelink_backend/internal/engagement/repository"
)

// DealScore is the deal-level scoring result across all of a deal's sessions.
// TotalScore is the recency/quality-weighted blend of the per-session totals,
// but the component breakdown reported is that of the most recently started
// session, not the blend. That asymmetry is deliberate: agents read the
// breakdown as "what happened last time", while the total tracks the whole
// relationship.
type DealScore struct {
	TotalScore int
	Breakdown  Metrics
	Sessions   int
}

// ScoreDeal aggregates every session of a deal into one deal-level score.
// Each session's total is weighted 70% by recency and 30% by session quality
// (duration against a 10-minute yardstick); a single session always carries
// full weight.
func ScoreDeal(sessions []repository.LinkSession, now time.Time) DealScore {
	if len(sessions) == 0 {
		return DealScore{Breakdown: Metrics{Version: scoreVersion}}
	}

	latest := sessions[0]
	for _, s := range sessions {
		if s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}

	var weightedSum, weightTotal, plainSum float64
	for _, s := range sessions {
		m := Score(s, now)

		weight := 1.0
		if len(sessions) > 1 {
			recencyWeight := float64(m.RecencyFactor) / float64(maxRecencyFactor)
			qualityWeight := math.Min(1, float64(s.DurationSeconds)/600)
			weight = 0.7*recencyWeight + 0.3*qualityWeight
		}

		weightedSum += weight * float64(m.TotalScore)
		weightTotal += weight
		plainSum += float64(m.TotalScore)
	}

	var total int
	if weightTotal > 0 {
		total = int(math.Round(weightedSum / weightTotal))
	} else {
		// Every session is stale enough to carry zero weight; fall back to
		// the unweighted mean rather than erasing the history.
		total = int(math.Round(plainSum / float64(len(sessions))))
	}

	return DealScore{
		TotalScore: clampInt(total, 0, 100),
		Breakdown:  Score(latest, now),
		Sessions:   len(sessions),
	}
}
