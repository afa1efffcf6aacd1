// Package domain provides core business rules for the engagement bounded context.
package domain

const (
	// StageUnchanged is a sentinel indicating that a derivation function
	// intentionally does not prescribe a deal stage. The caller must
	// substitute the current stage of the deal.
	StageUnchanged = ""

	StageCreated   = "created"
	StageShared    = "shared"
	StageAccessed  = "accessed"
	StageEngaged   = "engaged"
	StageQualified = "qualified"
	StageAdvanced  = "advanced"
	StageClosed    = "closed"
)

// stageOrder defines the forward pipeline order. Automatic transitions only
// ever move a deal toward higher ranks; manual agent overrides bypass this
// table entirely and are not validated here.
var stageOrder = map[string]int{
	StageCreated:   0,
	StageShared:    1,
	StageAccessed:  2,
	StageEngaged:   3,
	StageQualified: 4,
	StageAdvanced:  5,
	StageClosed:    6,
}

// IsKnownStage reports whether stage is part of the pipeline vocabulary.
func IsKnownStage(stage string) bool {
	_, ok := stageOrder[stage]
	return ok
}

// StageRank returns the position of a stage in the pipeline, or -1 for
// unknown stages.
func StageRank(stage string) int {
	rank, ok := stageOrder[stage]
	if !ok {
		return -1
	}
	return rank
}

// StageForScore returns the minimum stage a deal must have reached for the
// given engagement score, or StageUnchanged when the score prescribes nothing.
func StageForScore(score int) string {
	switch {
	case score >= 80:
		return StageQualified
	case score >= 50:
		return StageEngaged
	default:
		return StageUnchanged
	}
}

// AdvanceStage resolves the monotonic-advance rule: the result is target when
// target is strictly ahead of current, otherwise current. The second return
// reports whether the stage actually moved.
func AdvanceStage(current, target string) (string, bool) {
	if target == StageUnchanged || !IsKnownStage(target) {
		return current, false
	}
	if !IsKnownStage(current) {
		return target, true
	}
	if stageOrder[target] > stageOrder[current] {
		return target, true
	}
	return current, false
}
