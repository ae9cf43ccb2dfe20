package model

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionType string

const (
	ConnectionTypeDoctor    ConnectionType = "DOCTOR"
	ConnectionTypeAttendant ConnectionType = "ATTENDANT"
)

func (t ConnectionType) Valid() bool {
	return t == ConnectionTypeDoctor || t == ConnectionTypeAttendant
}

// Role returns the role the connected user must hold for this type.
func (t ConnectionType) Role() Role {
	return Role(t)
}

type ConnectionStatus string

const (
	ConnectionStatusPending  ConnectionStatus = "PENDING"
	ConnectionStatusAccepted ConnectionStatus = "ACCEPTED"
	ConnectionStatusRejected ConnectionStatus = "REJECTED"
	ConnectionStatusRevoked  ConnectionStatus = "REVOKED"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionStatusPending, ConnectionStatusAccepted, ConnectionStatusRejected, ConnectionStatusRevoked:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s ConnectionStatus) Terminal() bool {
	return s == ConnectionStatusRejected || s == ConnectionStatusRevoked
}

// Open reports whether s counts towards the one-open-connection rule.
func (s ConnectionStatus) Open() bool {
	return s == ConnectionStatusPending || s == ConnectionStatusAccepted
}

// Connection is a trust relationship between a patient and a caregiver.
// PatientID is the patient's user id, not the profile id.
type Connection struct {
	Base
	PatientID       uuid.UUID        `db:"patient_id" json:"patient_id"`
	ConnectedUserID uuid.UUID        `db:"connected_user_id" json:"connected_user_id"`
	CreatedByID     uuid.UUID        `db:"created_by_id" json:"created_by_id"`
	ConnectionType  ConnectionType   `db:"connection_type" json:"connection_type"`
	Status          ConnectionStatus `db:"status" json:"status"`
}

// Initiator reports whether userID created the connection request.
func (c *Connection) Initiator(userID uuid.UUID) bool {
	return c.CreatedByID == userID
}

// Participant reports whether userID is either side of the connection.
func (c *Connection) Participant(userID uuid.UUID) bool {
	return c.PatientID == userID || c.ConnectedUserID == userID
}

// ConnectionFilter selects which connections List returns.
type ConnectionFilter string

const (
	ConnectionFilterAccepted        ConnectionFilter = "accepted"
	ConnectionFilterPendingSent     ConnectionFilter = "pending_sent"
	ConnectionFilterPendingReceived ConnectionFilter = "pending_received"
)

func (f ConnectionFilter) Valid() bool {
	switch f {
	case ConnectionFilterAccepted, ConnectionFilterPendingSent, ConnectionFilterPendingReceived:
		return true
	}
	return false
}

// ConnectionStatusChange is the payload of connection status events.
type ConnectionStatusChange struct {
	ConnectionID uuid.UUID        `json:"connection_id"`
	From         ConnectionStatus `json:"from"`
	To           ConnectionStatus `json:"to"`
	ActorID      uuid.UUID        `json:"actor_id"`
	ChangedAt    time.Time        `json:"changed_at"`
}
