// Package transport defines the request and response DTOs for the
// engagement HTTP API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"swipelink_backend/internal/engagement/repository"
	"swipelink_backend/internal/engagement/scoring"
	"swipelink_backend/internal/engagement/service"
)

// Request DTOs

type CreateLinkRequest struct {
	AgentID       uuid.UUID `json:"agentId" validate:"required"`
	Name          string    `json:"name" validate:"required,min=1,max=200"`
	PropertyCount int       `json:"propertyCount" validate:"required,min=1"`
}

type ClientContextRequest struct {
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	Name     string     `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone    string     `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Email    string     `json:"email,omitempty" validate:"omitempty,email"`
}

type StartSessionRequest struct {
	Client *ClientContextRequest `json:"client,omitempty"`
}

type RecordInteractionRequest struct {
	PropertyID uuid.UUID         `json:"propertyId" validate:"required"`
	Action     string            `json:"action" validate:"required,oneof=view like dislike consider detail"`
	OccurredAt time.Time         `json:"occurredAt" validate:"required"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type ResolveTaskRequest struct {
	Status string `json:"status" validate:"required,oneof=completed dismissed"`
}

type CloseDealRequest struct {
	Won bool `json:"won"`
}

// Response DTOs

type LinkResponse struct {
	ID            uuid.UUID  `json:"id"`
	AgentID       uuid.UUID  `json:"agentId"`
	Name          string     `json:"name"`
	PropertyCount int        `json:"propertyCount"`
	SharedAt      *time.Time `json:"sharedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type DealResponse struct {
	ID              uuid.UUID  `json:"id"`
	LinkID          uuid.UUID  `json:"linkId"`
	AgentID         uuid.UUID  `json:"agentId"`
	ClientID        *uuid.UUID `json:"clientId,omitempty"`
	ClientName      *string    `json:"clientName,omitempty"`
	ClientPhone     *string    `json:"clientPhone,omitempty"`
	ClientEmail     *string    `json:"clientEmail,omitempty"`
	Stage           string     `json:"stage"`
	Status          string     `json:"status"`
	EngagementScore int        `json:"engagementScore"`
	HighestScore    int        `json:"highestScore"`
	Temperature     string     `json:"temperature"`
	SessionCount    int        `json:"sessionCount"`
	TotalTimeSpent  int        `json:"totalTimeSpent"`
	LastActivityAt  *time.Time `json:"lastActivityAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type SessionResponse struct {
	ID                    uuid.UUID  `json:"id"`
	LinkID                uuid.UUID  `json:"linkId"`
	DealID                uuid.UUID  `json:"dealId"`
	StartedAt             time.Time  `json:"startedAt"`
	EndedAt               *time.Time `json:"endedAt,omitempty"`
	DurationSeconds       int        `json:"durationSeconds"`
	TotalProperties       int        `json:"totalProperties"`
	PropertiesViewed      int        `json:"propertiesViewed"`
	PropertiesLiked       int        `json:"propertiesLiked"`
	PropertiesConsidered  int        `json:"propertiesConsidered"`
	PropertiesPassed      int        `json:"propertiesPassed"`
	DetailViewsOpened     int        `json:"detailViewsOpened"`
	AvgSecondsPerProperty float64    `json:"avgSecondsPerProperty"`
	Completed             bool       `json:"completed"`
	ReturnVisit           bool       `json:"returnVisit"`
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	DealID      uuid.UUID  `json:"dealId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	IsAutomated bool       `json:"isAutomated"`
	TriggerType string     `json:"triggerType,omitempty"`
	DueDate     time.Time  `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type MilestoneResponse struct {
	Milestone string    `json:"milestone"`
	Score     int       `json:"score"`
	ReachedAt time.Time `json:"reachedAt"`
}

type InteractionResponse struct {
	Session SessionResponse `json:"session"`
	Metrics scoring.Metrics `json:"metrics"`
	Deal    *DealResponse   `json:"deal,omitempty"`
	Tasks   []TaskResponse  `json:"tasks,omitempty"`
}

type EndSessionResponse struct {
	Session   SessionResponse `json:"session"`
	Metrics   scoring.Metrics `json:"metrics"`
	Finalized bool            `json:"finalized"`
	Deal      *DealResponse   `json:"deal,omitempty"`
}

type StartSessionResponse struct {
	Session     SessionResponse `json:"session"`
	ReturnVisit bool            `json:"returnVisit"`
}

type CreateLinkResponse struct {
	Link  LinkResponse   `json:"link"`
	Deal  DealResponse   `json:"deal"`
	Tasks []TaskResponse `json:"tasks,omitempty"`
}

type DealOverviewResponse struct {
	Deal       DealResponse        `json:"deal"`
	Score      scoring.DealScore   `json:"score"`
	Sessions   []SessionResponse   `json:"sessions"`
	OpenTasks  []TaskResponse      `json:"openTasks"`
	Milestones []MilestoneResponse `json:"milestones"`
}

// Mapping helpers

func FromLink(link repository.Link) LinkResponse {
	return LinkResponse{
		ID:            link.ID,
		AgentID:       link.AgentID,
		Name:          link.Name,
		PropertyCount: link.PropertyCount,
		SharedAt:      link.SharedAt,
		CreatedAt:     link.CreatedAt,
	}
}

func FromDeal(deal repository.Deal) DealResponse {
	return DealResponse{
		ID:              deal.ID,
		LinkID:          deal.LinkID,
		AgentID:         deal.AgentID,
		ClientID:        deal.ClientID,
		ClientName:      deal.ClientName,
		ClientPhone:     deal.ClientPhone,
		ClientEmail:     deal.ClientEmail,
		Stage:           deal.DealStage,
		Status:          deal.DealStatus,
		EngagementScore: deal.EngagementScore,
		HighestScore:    deal.HighestScore,
		Temperature:     deal.Temperature,
		SessionCount:    deal.SessionCount,
		TotalTimeSpent:  deal.TotalTimeSpent,
		LastActivityAt:  deal.LastActivityAt,
		CreatedAt:       deal.CreatedAt,
		UpdatedAt:       deal.UpdatedAt,
	}
}

func FromSession(sess repository.LinkSession) SessionResponse {
	return SessionResponse{
		ID:                    sess.ID,
		LinkID:                sess.LinkID,
		DealID:                sess.DealID,
		StartedAt:             sess.StartedAt,
		EndedAt:               sess.EndedAt,
		DurationSeconds:       sess.DurationSeconds,
		TotalProperties:       sess.TotalProperties,
		PropertiesViewed:      sess.PropertiesViewed,
		PropertiesLiked:       sess.PropertiesLiked,
		PropertiesConsidered:  sess.PropertiesConsidered,
		PropertiesPassed:      sess.PropertiesPassed,
		DetailViewsOpened:     sess.DetailViewsOpened,
		AvgSecondsPerProperty: sess.AvgSecondsPerProperty,
		Completed:             sess.Completed,
		ReturnVisit:           sess.ReturnVisit,
	}
}

func FromSessions(sessions []repository.LinkSession) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, FromSession(sess))
	}
	return out
}

func FromTask(task repository.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		DealID:      task.DealID,
		Title:       task.Title,
		Description: task.Description,
		Type:        task.Type,
		Priority:    task.Priority,
		Status:      task.Status,
		IsAutomated: task.IsAutomated,
		TriggerType: task.TriggerType,
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	}
}

func FromTasks(tasks []repository.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

func FromMilestones(milestones []repository.DealMilestone) []MilestoneResponse {
	out := make([]MilestoneResponse, 0, len(milestones))
	for _, m := range milestones {
		out = append(out, MilestoneResponse{
			Milestone: m.Milestone,
			Score:     m.Score,
			ReachedAt: m.CreatedAt,
		})
	}
	return out
}

func FromOverview(overview service.DealOverview) DealOverviewResponse {
	return DealOverviewResponse{
		Deal:       FromDeal(overview.Deal),
		Score:      overview.Score,
		Sessions:   FromSessions(overview.Sessions),
		OpenTasks:  FromTasks(overview.OpenTasks),
		Milestones: FromMilestones(overview.Milestones),
	}
}
