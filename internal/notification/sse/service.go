// Package sse provides Server-Sent Events support for real-time engagement
// updates pushed to agent dashboards.
package sse

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionEnded     EventType = "session_ended"
	EventScoreUpdated     EventType = "score_updated"
	EventStageChanged     EventType = "stage_changed"
	EventMilestoneReached EventType = "milestone_reached"
	EventTaskCreated      EventType = "task_created"
	EventDealWentHot      EventType = "deal_went_hot"
)

// Event represents an SSE event payload
type Event struct {
	Type    EventType   `json:"type"`
	DealID  uuid.UUID   `json:"dealId,omitempty"`
	LinkID  uuid.UUID   `json:"linkId,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	agentID uuid.UUID
	events  chan Event
}

// Service manages SSE connections and event broadcasting. Connections are
// keyed by agent: every event for a deal goes to the deal's owning agent.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client // agentID -> clients
}

// New creates a new SSE service
func New() *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.agentID] = append(s.clients[c.agentID], c)
}

func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.agentID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.agentID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(s.clients[c.agentID]) == 0 {
		delete(s.clients, c.agentID)
	}

	close(c.events)
}

// Publish sends an event to every open connection of one agent. Slow
// consumers drop events rather than block the publisher.
func (s *Service) Publish(agentID uuid.UUID, event Event) {
	s.mu.RLock()
	clients := s.clients[agentID]
	s.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.events <- event:
		default:
			log.Printf("SSE: Event buffer full for agent %s", agentID)
		}
	}
}

// Handler returns a Gin handler for SSE connections. getAgentID extracts the
// connecting agent's identity from the request.
func (s *Service) Handler(getAgentID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, ok := getAgentID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Set SSE headers
		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			agentID: agentID,
			events:  make(chan Event, 32),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		// Send connection event
		c.SSEvent("connected", gin.H{"agentId": agentID})
		c.Writer.Flush()

		log.Printf("SSE: Client connected - agent %s", agentID)

		// Listen for events
		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				log.Printf("SSE: Client disconnected - agent %s", agentID)
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close shuts down the SSE service
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
