package domain

const (
	TemperatureHot  = "hot"
	TemperatureWarm = "warm"
	TemperatureCold = "cold"
)

// ClassifyTemperature buckets an engagement score. Out-of-range inputs are
// clamped first so classification never fails: negative scores are cold,
// scores above 100 are hot.
func ClassifyTemperature(score int) string {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	switch {
	case score >= 80:
		return TemperatureHot
	case score >= 50:
		return TemperatureWarm
	default:
		return TemperatureCold
	}
}
