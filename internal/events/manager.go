// Package events handles emission of system events as structured log
// entries, giving operators a single audit stream for sync and connection
// lifecycle activity.
package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	SyncStart         EventType = "SYNC_START"
	SyncComplete      EventType = "SYNC_COMPLETE"
	SyncFailed        EventType = "SYNC_FAILED"
	ConnectionAdded   EventType = "CONNECTION_ADDED"
	ConnectionRemoved EventType = "CONNECTION_REMOVED"
	PortfolioImported EventType = "PORTFOLIO_IMPORTED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission and logging
type Manager struct {
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")
}

// EmitError emits a failure event carrying the error description
func (m *Manager) EmitError(eventType EventType, module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(eventType, module, data)
}
