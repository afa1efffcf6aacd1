// Package scoring converts session summaries into engagement metrics.
// All functions are pure and deterministic: the clock is an explicit
// argument, and no I/O happens here.
package scoring

import (
	"math"
	"time"

	"swipelink_backend/internal/engagement/repository"
)

const (
	// scoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing scoring logic significantly.
	scoreVersion = "2026-v1"

	// Maximum contribution from each component. The total is always the
	// clamped sum of the four.
	maxSessionCompletion    = 25
	maxPropertyInteraction  = 35
	maxBehavioralIndicators = 25
	maxRecencyFactor        = 15
)

// Metrics is the scoring result for one session summary. Each component is
// independently bounded; TotalScore is the sum clamped to 0-100.
type Metrics struct {
	SessionCompletion    int    `json:"sessionCompletion"`
	PropertyInteraction  int    `json:"propertyInteraction"`
	BehavioralIndicators int    `json:"behavioralIndicators"`
	RecencyFactor        int    `json:"recencyFactor"`
	TotalScore           int    `json:"totalScore"`
	Version              string `json:"version"`
}

// Score computes the engagement metrics for a single session. An empty
// collection short-circuits to zero across the board: there was nothing to
// browse, so no behavior is creditable.
func Score(s repository.LinkSession, now time.Time) Metrics {
	if s.TotalProperties <= 0 {
		return Metrics{Version: scoreVersion}
	}

	m := Metrics{
		SessionCompletion:    scoreSessionCompletion(s),
		PropertyInteraction:  scorePropertyInteraction(s),
		BehavioralIndicators: scoreBehavioralIndicators(s),
		RecencyFactor:        scoreRecencyFactor(s, now),
		Version:              scoreVersion,
	}
	m.TotalScore = clampInt(m.SessionCompletion+m.PropertyInteraction+m.BehavioralIndicators+m.RecencyFactor, 0, 100)
	return m
}

// scoreSessionCompletion rewards how much of the collection the client
// worked through. The two linear segments meet at the halfway point: 5-15
// below it, 16-25 above. A return visit adds a flat +5 regardless of how
// many prior visits there were.
func scoreSessionCompletion(s repository.LinkSession) int {
	ratio := float64(s.PropertiesViewed) / float64(s.TotalProperties)

	score := 0
	switch {
	case ratio <= 0:
		score = 0
	case ratio <= 0.5:
		score = int(math.Round(5 + ratio*20))
	default:
		score = int(math.Round(16 + (ratio-0.5)*18))
	}

	if s.ReturnVisit {
		score += 5
	}

	return clampInt(score, 0, maxSessionCompletion)
}

// scorePropertyInteraction weights the explicit actions the client took:
// likes count double, detail opens triple, and lingering on cards adds a
// point per 30 seconds of average dwell time.
func scorePropertyInteraction(s repository.LinkSession) int {
	score := 2*s.PropertiesLiked + s.PropertiesConsidered + 3*s.DetailViewsOpened
	score += int(s.AvgSecondsPerProperty / 30)
	return clampInt(score, 0, maxPropertyInteraction)
}

// scoreBehavioralIndicators adds the softer buying signals. The addends can
// sum to 45; the clamp to 25 is intentional and must be preserved.
func scoreBehavioralIndicators(s repository.LinkSession) int {
	score := 0

	if s.ReturnVisit {
		score += 10
	}
	if s.DurationSeconds > 300 {
		score += 10
	}
	if s.PropertiesViewed > 0 && float64(s.PropertiesLiked)/float64(s.PropertiesViewed) > 0.20 {
		score += 15
	}
	// Consistent preference: the client liked more than they passed on.
	if s.PropertiesLiked > s.PropertiesPassed {
		score += 10
	}

	return clampInt(score, 0, maxBehavioralIndicators)
}

// scoreRecencyFactor decays with hours since the session ended, or since now
// for a session still open.
func scoreRecencyFactor(s repository.LinkSession, now time.Time) int {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}

	hours := now.Sub(end).Hours()
	switch {
	case hours <= 24:
		return maxRecencyFactor
	case hours <= 168:
		return 10
	case hours <= 720:
		return 5
	default:
		return 0
	}
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
