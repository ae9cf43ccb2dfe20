package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusRetry     OutboxStatus = "RETRY"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Care event types relayed to the reminder poller.
const (
	EventConnectionRequested = "connection.requested"
	EventConnectionAccepted  = "connection.accepted"
	EventConnectionRejected  = "connection.rejected"
	EventConnectionRevoked   = "connection.revoked"
	EventScheduleCreated     = "schedule.created"
	EventScheduleReactivated = "schedule.reactivated"
	EventScheduleUpdated     = "schedule.updated"
	EventScheduleDeleted     = "schedule.deleted"
	EventMedicationCreated   = "medication.created"
	EventMedicationUpdated   = "medication.updated"
)

// ConnectionEventType maps a target status onto its event type.
func ConnectionEventType(status ConnectionStatus) string {
	switch status {
	case ConnectionStatusAccepted:
		return EventConnectionAccepted
	case ConnectionStatusRejected:
		return EventConnectionRejected
	case ConnectionStatusRevoked:
		return EventConnectionRevoked
	default:
		return EventConnectionRequested
	}
}

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// NewOutboxEvent builds a pending event with payload encoded as JSON.
func NewOutboxEvent(eventType string, payload interface{}, now time.Time) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
