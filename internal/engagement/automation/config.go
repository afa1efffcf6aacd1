// Package automation evaluates declarative follow-up rules and fixed
// event-to-task templates against deal state, producing deduplicated task
// drafts for the agent.
package automation

import (
	"fmt"
	"os"

	"swipelink_backend/internal/engagement/domain"

	"gopkg.in/yaml.v3"
)

// Trigger events with a fixed task template each.
const (
	TriggerLinkCreated      = "link_created"
	TriggerLinkShared       = "link_shared"
	TriggerLinkAccessed     = "link_accessed"
	TriggerPropertyLiked    = "property_liked"
	TriggerVisitRequested   = "visit_requested"
	TriggerHighEngagement   = "high_engagement"
	TriggerInactivity3Days  = "inactivity_3_days"
	TriggerShowingScheduled = "showing_scheduled"
)

// Task priorities, highest first.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// TaskTemplate describes one task to draft when its trigger or rule fires.
// DelayHours offsets the due date from the evaluation time.
type TaskTemplate struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Priority    string `yaml:"priority"`
	DelayHours  int    `yaml:"delayHours"`
}

// RuleConditions is a conjunction: every specified condition must hold, and
// unspecified conditions pass. Nil pointers and empty slices mean "not
// specified".
type RuleConditions struct {
	DealStages        []string `yaml:"dealStages,omitempty"`
	DealStatuses      []string `yaml:"dealStatuses,omitempty"`
	ScoreMin          *int     `yaml:"scoreMin,omitempty"`
	ScoreMax          *int     `yaml:"scoreMax,omitempty"`
	DaysInactiveMin   *int     `yaml:"daysInactiveMin,omitempty"`
	DaysInactiveMax   *int     `yaml:"daysInactiveMax,omitempty"`
}

// Rule is one declarative condition-action pair. All matching active rules
// fire independently; this is a multi-fire engine, not first-match-wins.
type Rule struct {
	ID       string         `yaml:"id"`
	Active   bool           `yaml:"active"`
	When     RuleConditions `yaml:"when"`
	Template TaskTemplate   `yaml:"task"`
}

// Config is the full rule configuration handed to the engine at construction.
// It is an explicit, swappable value: tests and deployments can supply
// alternate tables without touching package state.
type Config struct {
	Triggers   map[string]TaskTemplate `yaml:"triggers"`
	Rules      []Rule                  `yaml:"rules"`
	StageTasks map[string]TaskTemplate `yaml:"stageTasks"`
}

func intPtr(v int) *int { return &v }

// DefaultConfig returns the built-in trigger and rule tables.
func DefaultConfig() Config {
	return Config{
		Triggers: map[string]TaskTemplate{
			TriggerLinkCreated: {
				Title:       "Prepare property collection",
				Description: "Review the property selection before sharing the link with the client.",
				Type:        "preparation",
				Priority:    PriorityMedium,
				DelayHours:  24,
			},
			TriggerLinkShared: {
				Title:       "Confirm client received link",
				Description: "Check that the client received the link and knows how to browse it.",
				Type:        "outreach",
				Priority:    PriorityMedium,
				DelayHours:  4,
			},
			TriggerLinkAccessed: {
				Title:       "Client opened the link",
				Description: "The client started browsing. Watch the engagement dashboard for activity.",
				Type:        "monitoring",
				Priority:    PriorityMedium,
				DelayHours:  24,
			},
			TriggerPropertyLiked: {
				Title:       "Follow up on liked properties",
				Description: "The client liked at least one property. Reach out while interest is fresh.",
				Type:        "follow_up",
				Priority:    PriorityHigh,
				DelayHours:  2,
			},
			TriggerVisitRequested: {
				Title:       "Schedule property visit",
				Description: "The client asked to visit a property. Arrange the showing.",
				Type:        "scheduling",
				Priority:    PriorityUrgent,
				DelayHours:  0,
			},
			TriggerHighEngagement: {
				Title:       "Hot lead - call now",
				Description: "Engagement crossed the hot threshold. Call the client today.",
				Type:        "call",
				Priority:    PriorityUrgent,
				DelayHours:  0,
			},
			TriggerInactivity3Days: {
				Title:       "Re-engage inactive client",
				Description: "No activity for three days. Send a nudge or fresh properties.",
				Type:        "re_engagement",
				Priority:    PriorityMedium,
				DelayHours:  0,
			},
			TriggerShowingScheduled: {
				Title:       "Prepare for property showing",
				Description: "A showing is on the calendar. Prepare materials and confirm logistics.",
				Type:        "preparation",
				Priority:    PriorityHigh,
				DelayHours:  0,
			},
		},
		Rules: []Rule{
			{
				ID:     "hot_lead",
				Active: true,
				When:   RuleConditions{ScoreMin: intPtr(80), ScoreMax: intPtr(100)},
				Template: TaskTemplate{
					Title:       "Hot Lead – Call Now",
					Description: "Engagement score is in the hot band. Call immediately.",
					Type:        "call",
					Priority:    PriorityUrgent,
					DelayHours:  0,
				},
			},
			{
				ID:     "qualified_checkin",
				Active: true,
				When: RuleConditions{
					DealStages:      []string{domain.StageQualified},
					DaysInactiveMin: intPtr(1),
					DaysInactiveMax: intPtr(3),
				},
				Template: TaskTemplate{
					Title:       "Check in with qualified client",
					Description: "A qualified deal went quiet for a day or more. Check in.",
					Type:        "check_in",
					Priority:    PriorityHigh,
					DelayHours:  2,
				},
			},
			{
				ID:     "warm_followup",
				Active: true,
				When:   RuleConditions{ScoreMin: intPtr(50), ScoreMax: intPtr(79)},
				Template: TaskTemplate{
					Title:       "Follow up with warm client",
					Description: "Engagement is warm. Follow up within a day.",
					Type:        "follow_up",
					Priority:    PriorityHigh,
					DelayHours:  24,
				},
			},
			{
				ID:     "cold_nurture",
				Active: true,
				When:   RuleConditions{ScoreMin: intPtr(1), ScoreMax: intPtr(49)},
				Template: TaskTemplate{
					Title:       "Nurture cold client",
					Description: "Low engagement so far. Schedule a light-touch nurture contact.",
					Type:        "nurture",
					Priority:    PriorityLow,
					DelayHours:  168,
				},
			},
		},
		StageTasks: map[string]TaskTemplate{
			domain.StageEngaged: {
				Title:       "Review liked properties with client",
				Description: "The deal reached the engaged stage. Go over the client's picks together.",
				Type:        "review",
				Priority:    PriorityHigh,
				DelayHours:  24,
			},
			domain.StageQualified: {
				Title:       "Prepare qualification call",
				Description: "The deal reached the qualified stage. Prepare budget and timeline questions.",
				Type:        "call",
				Priority:    PriorityHigh,
				DelayHours:  4,
			},
		},
	}
}

// LoadConfig reads a rule configuration from a YAML file. Sections absent
// from the file fall back to the built-in defaults, so a deployment can
// override just the rule table.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read rules file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("parse rules file: %w", err)
	}

	defaults := DefaultConfig()
	if len(loaded.Triggers) == 0 {
		loaded.Triggers = defaults.Triggers
	}
	if len(loaded.Rules) == 0 {
		loaded.Rules = defaults.Rules
	}
	if len(loaded.StageTasks) == 0 {
		loaded.StageTasks = defaults.StageTasks
	}
	return loaded, nil
}
