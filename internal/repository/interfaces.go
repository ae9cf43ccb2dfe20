package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate key")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	}

	PatientProfileRepository interface {
		GetByID(ctx context.Context, id uuid.UUID) (*model.PatientProfile, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.PatientProfile, error)
	}

	// EventQueue enqueues care events in the caller's unit of work.
	EventQueue interface {
		Enqueue(ctx context.Context, event *model.OutboxEvent) error
	}

	// ConnectionReader answers delegation questions for the access resolver.
	ConnectionReader interface {
		HasAccepted(ctx context.Context, patientID, connectedUserID uuid.UUID, connectionType model.ConnectionType) (bool, error)
	}

	ConnectionQueries interface {
		ConnectionReader
		EventQueue
		GetByID(ctx context.Context, id uuid.UUID) (*model.Connection, error)
		// GetForParticipant scopes the lookup to the actor: as PATIENT the
		// actor must be the patient, otherwise the connected user on a
		// connection whose type equals the role.
		GetForParticipant(ctx context.Context, id, userID uuid.UUID, role model.Role) (*model.Connection, error)
		// FindOpen returns the PENDING or ACCEPTED connection for the triple,
		// or nil when there is none.
		FindOpen(ctx context.Context, patientID, connectedUserID uuid.UUID, connectionType model.ConnectionType) (*model.Connection, error)
		Create(ctx context.Context, conn *model.Connection) error
		// TransitionStatus moves the connection from one status to another
		// and reports false when the row was not in the expected status.
		TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.ConnectionStatus, at time.Time) (bool, error)
		ListForParticipant(ctx context.Context, userID uuid.UUID, role model.Role, filter model.ConnectionFilter) ([]*model.Connection, error)
	}

	ConnectionRepository interface {
		ConnectionQueries
		RunInTx(ctx context.Context, fn func(q ConnectionQueries) error) error
	}

	ScheduleQueries interface {
		EventQueue
		GetByID(ctx context.Context, domain model.Domain, id uuid.UUID) (*model.Schedule, error)
		// FindSlotOccupants returns every schedule at key regardless of
		// is_active, active rows first. excludeID is skipped when set.
		FindSlotOccupants(ctx context.Context, key model.SlotKey, excludeID uuid.UUID) ([]*model.Schedule, error)
		Insert(ctx context.Context, s *model.Schedule) error
		Update(ctx context.Context, s *model.Schedule) error
		Delete(ctx context.Context, domain model.Domain, id, patientProfileID uuid.UUID) (bool, error)
		ListByPatient(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID) ([]*model.Schedule, error)
		// ListActiveCovering returns active schedules whose window contains
		// day, latest start_date first.
		ListActiveCovering(ctx context.Context, domain model.Domain, patientProfileID uuid.UUID, day time.Time) ([]*model.Schedule, error)

		GetMedication(ctx context.Context, id uuid.UUID) (*model.Medication, error)
		CreateMedication(ctx context.Context, m *model.Medication) error
		UpdateMedication(ctx context.Context, m *model.Medication) error
		SetActiveByMedication(ctx context.Context, medicationID uuid.UUID, active bool, at time.Time) (int64, error)
	}

	ScheduleRepository interface {
		ScheduleQueries
		RunInTx(ctx context.Context, fn func(q ScheduleQueries) error) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
		GetPendingEventsWithLock(ctx context.Context, tx *sqlx.Tx, limit int) ([]*model.OutboxEvent, error)
		UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
