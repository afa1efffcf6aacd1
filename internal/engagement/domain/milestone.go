package domain

const (
	MilestoneScore25 = "score_25"
	MilestoneScore50 = "score_50"
	MilestoneScore80 = "score_80"

	MilestoneStageEngaged   = "stage_engaged"
	MilestoneStageQualified = "stage_qualified"
)

// scoreMilestones lists the score thresholds that count as milestones, in
// ascending order.
var scoreMilestones = []struct {
	name      string
	threshold int
}{
	{MilestoneScore25, 25},
	{MilestoneScore50, 50},
	{MilestoneScore80, 80},
}

// ScoreMilestonesCrossed returns the milestones newly crossed by moving from
// the deal's historical high-water mark to newScore. A milestone fires only
// on the first upward crossing in the deal's lifetime: crossing downward, or
// re-crossing upward after the high-water mark already passed the threshold,
// yields nothing.
func ScoreMilestonesCrossed(highWaterMark, newScore int) []string {
	var crossed []string
	for _, m := range scoreMilestones {
		if highWaterMark < m.threshold && newScore >= m.threshold {
			crossed = append(crossed, m.name)
		}
	}
	return crossed
}

// StageMilestone returns the milestone name for entering a stage, or "" when
// the stage has no associated milestone.
func StageMilestone(stage string) string {
	switch stage {
	case StageEngaged:
		return MilestoneStageEngaged
	case StageQualified:
		return MilestoneStageQualified
	default:
		return ""
	}
}
