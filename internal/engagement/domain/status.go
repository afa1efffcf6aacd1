package domain

const (
	StatusActive     = "active"
	StatusQualified  = "qualified"
	StatusNurturing  = "nurturing"
	StatusClosedWon  = "closed-won"
	StatusClosedLost = "closed-lost"
)

// terminalStatuses are deal statuses where no further automatic processing
// should occur. Deals are never hard-deleted; they end up in one of these.
var terminalStatuses = map[string]bool{
	StatusClosedWon:  true,
	StatusClosedLost: true,
}

// IsTerminalStatus returns true if the status alone is terminal.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

// DeriveStatus returns the status a deal should carry after an automatic
// evaluation. Terminal statuses are sticky; active deals become qualified
// when the pipeline reaches the qualified stage. Nurturing is only ever set
// by the inactivity sweep, never revoked here.
func DeriveStatus(current, stage string) string {
	if terminalStatuses[current] {
		return current
	}
	if StageRank(stage) >= StageRank(StageQualified) && current == StatusActive {
		return StatusQualified
	}
	return current
}
