package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	"github.com/jwalitptl/care-api/internal/service/event"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

type Service struct {
	repo     repository.ConnectionRepository
	users    repository.UserRepository
	profiles repository.PatientProfileRepository
	events   *event.Emitter
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	repo repository.ConnectionRepository,
	users repository.UserRepository,
	profiles repository.PatientProfileRepository,
	events *event.Emitter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		profiles: profiles,
		events:   events,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Create opens a PENDING connection between the actor and target. A
// patient names the caregiver, a caregiver names the patient.
func (s *Service) Create(ctx context.Context, actor model.Actor, connectionType model.ConnectionType, targetUserID uuid.UUID) (*model.Connection, error) {
	if !connectionType.Valid() {
		return nil, apperrors.Validation("connection_type", fmt.Sprintf("unknown connection type %q", connectionType))
	}
	if err := s.requireRole(ctx, actor); err != nil {
		return nil, err
	}
	if actor.UserID == targetUserID {
		return nil, apperrors.Validation("target_user_id", "cannot connect to yourself")
	}

	var patientID, connectedID uuid.UUID
	switch actor.ActiveRole {
	case model.RolePatient:
		if _, err := s.profiles.GetByUserID(ctx, actor.UserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.Forbidden("patient_profile_required",
					"a patient profile is required to request connections")
			}
			return nil, apperrors.Internal(err)
		}
		if err := s.requireTargetRole(ctx, targetUserID, connectionType.Role()); err != nil {
			return nil, err
		}
		patientID, connectedID = actor.UserID, targetUserID

	case model.RoleDoctor, model.RoleAttendant:
		if connectionType.Role() != actor.ActiveRole {
			return nil, apperrors.Forbidden("connection_type_mismatch",
				fmt.Sprintf("a user acting as %s cannot request a %s connection", actor.ActiveRole, connectionType))
		}
		if _, err := s.profiles.GetByUserID(ctx, targetUserID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound("patient", err)
			}
			return nil, apperrors.Internal(err)
		}
		patientID, connectedID = targetUserID, actor.UserID

	default:
		return nil, apperrors.Forbidden("role_not_held", fmt.Sprintf("unknown active role %q", actor.ActiveRole))
	}

	now := s.now().UTC()
	conn := &model.Connection{
		PatientID:       patientID,
		ConnectedUserID: connectedID,
		CreatedByID:     actor.UserID,
		ConnectionType:  connectionType,
		Status:          model.ConnectionStatusPending,
	}
	conn.ID = uuid.New()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	err := s.repo.RunInTx(ctx, func(q repository.ConnectionQueries) error {
		existing, err := q.FindOpen(ctx, patientID, connectedID, connectionType)
		if err != nil {
			return apperrors.Internal(err)
		}
		if existing != nil {
			return apperrors.Conflict("connection_exists",
				fmt.Sprintf("a %s %s connection already exists", existing.Status, connectionType), nil)
		}

		// mirrored pair with the roles swapped
		reverse, err := q.FindOpen(ctx, connectedID, patientID, connectionType)
		if err != nil {
			return apperrors.Internal(err)
		}
		if reverse != nil {
			return apperrors.Conflict("reverse_connection_exists",
				fmt.Sprintf("a %s connection already exists in the opposite direction", connectionType), nil)
		}

		if err := q.Create(ctx, conn); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Conflict("connection_exists",
					fmt.Sprintf("a %s connection for this pair was created concurrently", connectionType), err)
			}
			return apperrors.Internal(err)
		}

		return s.events.Emit(ctx, q, model.EventConnectionRequested, conn)
	})
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	s.metrics.ConnectionsCreated.WithLabelValues(string(connectionType)).Inc()
	s.logger.Info("connection requested",
		"connection_id", conn.ID.String(),
		"connection_type", string(connectionType),
		"created_by_id", actor.UserID.String())
	return conn, nil
}

// Get returns a connection the actor participates in under its active role.
func (s *Service) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Connection, error) {
	conn, err := s.repo.GetForParticipant(ctx, id, actor.UserID, actor.ActiveRole)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("connection", err)
		}
		return nil, apperrors.Internal(err)
	}
	return conn, nil
}

// Transition moves a connection to newStatus. The write only succeeds if
// the stored status is still the one the checks ran against.
func (s *Service) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, newStatus model.ConnectionStatus) (*model.Connection, error) {
	if !newStatus.Valid() {
		return nil, apperrors.Validation("status", fmt.Sprintf("unknown connection status %q", newStatus))
	}
	if err := s.requireRole(ctx, actor); err != nil {
		return nil, err
	}

	conn, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(conn, actor.UserID, newStatus); err != nil {
		return nil, err
	}

	from := conn.Status
	now := s.now().UTC()
	err = s.repo.RunInTx(ctx, func(q repository.ConnectionQueries) error {
		ok, err := q.TransitionStatus(ctx, id, from, newStatus, now)
		if err != nil {
			return apperrors.Internal(err)
		}
		if !ok {
			return s.staleTransition(ctx, q, id, newStatus)
		}

		return s.events.Emit(ctx, q, model.ConnectionEventType(newStatus), model.ConnectionStatusChange{
			ConnectionID: id,
			From:         from,
			To:           newStatus,
			ActorID:      actor.UserID,
			ChangedAt:    now,
		})
	})
	if err != nil {
		return nil, apperrors.Wrap(err)
	}

	conn.Status = newStatus
	conn.UpdatedAt = now
	s.metrics.ConnectionTransitions.WithLabelValues(string(from), string(newStatus)).Inc()
	s.logger.Info("connection status changed",
		"connection_id", id.String(),
		"from", string(from),
		"to", string(newStatus),
		"actor_id", actor.UserID.String())
	return conn, nil
}

// staleTransition explains a conditional update that matched no row.
func (s *Service) staleTransition(ctx context.Context, q repository.ConnectionQueries, id uuid.UUID, to model.ConnectionStatus) error {
	current, err := q.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("connection", err)
		}
		return apperrors.Internal(err)
	}
	return apperrors.InvalidTransition(string(current.Status), string(to))
}

func (s *Service) List(ctx context.Context, actor model.Actor, filter model.ConnectionFilter) ([]*model.Connection, error) {
	if !filter.Valid() {
		return nil, apperrors.Validation("filter", fmt.Sprintf("unknown filter %q", filter))
	}
	conns, err := s.repo.ListForParticipant(ctx, actor.UserID, actor.ActiveRole, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return conns, nil
}

func (s *Service) requireRole(ctx context.Context, actor model.Actor) error {
	user, err := s.users.GetUser(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Forbidden("role_not_held", "unknown actor")
		}
		return apperrors.Internal(err)
	}
	if !user.HasRole(actor.ActiveRole) {
		return apperrors.Forbidden("role_not_held",
			fmt.Sprintf("actor does not hold the %s role", actor.ActiveRole))
	}
	return nil
}

func (s *Service) requireTargetRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(string(role), err)
		}
		return apperrors.Internal(err)
	}
	if !user.HasRole(role) {
		return apperrors.NotFound(string(role), nil)
	}
	return nil
}
