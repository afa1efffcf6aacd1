package automation

import (
	"sort"
	"time"
)

// repeatable triggers may legitimately fire more than once per deal, so
// their drafts carry no dedup tag.
var repeatableTriggers = map[string]bool{
	TriggerVisitRequested:   true,
	TriggerShowingScheduled: true,
}

// TaskDraft is a task the engine wants created. Tag is the dedup key; an
// empty tag means the draft is always inserted. Source names the trigger,
// stage or rule that produced the draft.
type TaskDraft struct {
	Tag         string
	Source      string
	Title       string
	Description string
	Type        string
	Priority    string
	DueAt       time.Time
}

// DealSnapshot is the read-only view of a deal the rule conditions run
// against.
type DealSnapshot struct {
	Stage          string
	Status         string
	Score          int
	LastActivityAt time.Time
}

// Input is one evaluation request: the deal as it stands after the latest
// change, the events that just happened, and the dedup tags already spent.
type Input struct {
	Deal          DealSnapshot
	Triggers      []string
	EnteredStages []string
	ExistingTags  map[string]bool
	Now           time.Time
}

// Engine turns snapshots and events into task drafts.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate runs the trigger table, the stage-entry table, and every active
// rule against the input. All matching rules fire; a draft whose tag is
// already in ExistingTags is skipped. Output order is deterministic:
// triggers in input order, stage tasks in input order, then rules in config
// order.
func (e *Engine) Evaluate(in Input) []TaskDraft {
	seen := make(map[string]bool, len(in.ExistingTags))
	for tag := range in.ExistingTags {
		seen[tag] = true
	}

	var drafts []TaskDraft
	add := func(tag, source string, tpl TaskTemplate) {
		if tag != "" {
			if seen[tag] {
				return
			}
			seen[tag] = true
		}
		drafts = append(drafts, TaskDraft{
			Tag:         tag,
			Source:      source,
			Title:       tpl.Title,
			Description: tpl.Description,
			Type:        tpl.Type,
			Priority:    tpl.Priority,
			DueAt:       in.Now.Add(time.Duration(tpl.DelayHours) * time.Hour),
		})
	}

	for _, trigger := range in.Triggers {
		tpl, ok := e.cfg.Triggers[trigger]
		if !ok {
			continue
		}
		tag := "trigger_" + trigger
		if repeatableTriggers[trigger] {
			tag = ""
		}
		add(tag, trigger, tpl)
	}

	for _, stage := range in.EnteredStages {
		tpl, ok := e.cfg.StageTasks[stage]
		if !ok {
			continue
		}
		add("stage_"+stage, "stage_entry", tpl)
	}

	for _, rule := range e.cfg.Rules {
		if !rule.Active || !rule.When.match(in.Deal, in.Now) {
			continue
		}
		add("rule_"+rule.ID, "rule", rule.Template)
	}

	return drafts
}

// match applies the conjunction. Every specified condition must hold.
func (c RuleConditions) match(deal DealSnapshot, now time.Time) bool {
	if len(c.DealStages) > 0 && !contains(c.DealStages, deal.Stage) {
		return false
	}
	if len(c.DealStatuses) > 0 && !contains(c.DealStatuses, deal.Status) {
		return false
	}
	if c.ScoreMin != nil && deal.Score < *c.ScoreMin {
		return false
	}
	if c.ScoreMax != nil && deal.Score > *c.ScoreMax {
		return false
	}
	if c.DaysInactiveMin != nil || c.DaysInactiveMax != nil {
		if deal.LastActivityAt.IsZero() {
			return false
		}
		days := int(now.Sub(deal.LastActivityAt).Hours() / 24)
		if c.DaysInactiveMin != nil && days < *c.DaysInactiveMin {
			return false
		}
		if c.DaysInactiveMax != nil && days > *c.DaysInactiveMax {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// TriggerNames returns the configured trigger names, sorted, for diagnostics
// and the admin listing endpoint.
func (e *Engine) TriggerNames() []string {
	names := make([]string, 0, len(e.cfg.Triggers))
	for name := range e.cfg.Triggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rules exposes the loaded rule table.
func (e *Engine) Rules() []Rule { return e.cfg.Rules }

// StageTemplate reports whether entering the given stage has a dedicated
// task template.
func (e *Engine) StageTemplate(stage string) (TaskTemplate, bool) {
	tpl, ok := e.cfg.StageTasks[stage]
	return tpl, ok
}
