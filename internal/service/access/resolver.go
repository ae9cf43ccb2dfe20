package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

// Action is the kind of access requested on a patient's data.
type Action string

const (
	ActionManageSchedules Action = "schedules"
	ActionWriteLogs       Action = "logs"
)

// Rules reported on a Decision.
const (
	RuleOwner              = "owner"
	RuleAttendantDelegated = "attendant_delegation"
	RuleDoctorDelegated    = "doctor_delegation"
	RuleDoctorLogsDenied   = "doctor_log_write_denied"
	RuleRoleNotHeld        = "role_not_held"
	RuleNoRelationship     = "no_relationship"
	RuleUnknownPatient     = "unknown_patient"
)

// Decision is the outcome of resolving an actor against a patient profile.
// Visible is true when the actor may learn the patient's data exists even
// if the requested action is denied.
type Decision struct {
	Allowed bool
	Visible bool
	Rule    string
}

type Config struct {
	CacheTTL        time.Duration
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:        5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// Resolver decides whether an actor may act on a patient. Profile owners
// and user roles are cached; delegation is always read from storage so a
// revoked connection stops granting access immediately.
type Resolver struct {
	users       repository.UserRepository
	profiles    repository.PatientProfileRepository
	connections repository.ConnectionReader
	cache       *cache.Cache
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewResolver(
	users repository.UserRepository,
	profiles repository.PatientProfileRepository,
	connections repository.ConnectionReader,
	config Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Resolver {
	return &Resolver{
		users:       users,
		profiles:    profiles,
		connections: connections,
		cache:       cache.New(config.CacheTTL, config.CleanupInterval),
		logger:      logger,
		metrics:     metrics,
	}
}

// Decide resolves actor against the patient profile for action.
func (r *Resolver) Decide(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, action Action) (Decision, error) {
	decision, err := r.decide(ctx, actor, patientProfileID, action)
	if err != nil {
		return Decision{}, err
	}

	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	r.metrics.AccessDecisions.WithLabelValues(string(action), decision.Rule, outcome).Inc()
	r.logger.Debug("access decision",
		"user_id", actor.UserID.String(),
		"active_role", string(actor.ActiveRole),
		"patient_profile_id", patientProfileID.String(),
		"action", string(action),
		"rule", decision.Rule,
		"allowed", decision.Allowed)
	return decision, nil
}

func (r *Resolver) decide(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, action Action) (Decision, error) {
	roles, err := r.rolesOf(ctx, actor.UserID)
	if err != nil {
		return Decision{}, err
	}
	if !holds(roles, actor.ActiveRole) {
		return Decision{Rule: RuleRoleNotHeld}, nil
	}

	owner, found, err := r.ownerOf(ctx, patientProfileID)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		return Decision{Rule: RuleUnknownPatient}, nil
	}

	switch actor.ActiveRole {
	case model.RolePatient:
		if owner == actor.UserID {
			return Decision{Allowed: true, Visible: true, Rule: RuleOwner}, nil
		}
		return Decision{Rule: RuleNoRelationship}, nil

	case model.RoleAttendant:
		ok, err := r.connections.HasAccepted(ctx, owner, actor.UserID, model.ConnectionTypeAttendant)
		if err != nil {
			return Decision{}, apperrors.Internal(err)
		}
		if ok {
			return Decision{Allowed: true, Visible: true, Rule: RuleAttendantDelegated}, nil
		}
		return Decision{Rule: RuleNoRelationship}, nil

	case model.RoleDoctor:
		ok, err := r.connections.HasAccepted(ctx, owner, actor.UserID, model.ConnectionTypeDoctor)
		if err != nil {
			return Decision{}, apperrors.Internal(err)
		}
		if !ok {
			return Decision{Rule: RuleNoRelationship}, nil
		}
		if action == ActionWriteLogs {
			return Decision{Visible: true, Rule: RuleDoctorLogsDenied}, nil
		}
		return Decision{Allowed: true, Visible: true, Rule: RuleDoctorDelegated}, nil
	}

	return Decision{Rule: RuleRoleNotHeld}, nil
}

// CanAct reports whether actor may perform action on the patient.
func (r *Resolver) CanAct(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, action Action) (bool, error) {
	d, err := r.Decide(ctx, actor, patientProfileID, action)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

// Authorize returns a Forbidden error naming the rule when actor may not
// perform action on the patient.
func (r *Resolver) Authorize(ctx context.Context, actor model.Actor, patientProfileID uuid.UUID, action Action) error {
	d, err := r.Decide(ctx, actor, patientProfileID, action)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ForbiddenFor(d, action)
	}
	return nil
}

// ForbiddenFor builds the error returned for a denied decision.
func ForbiddenFor(d Decision, action Action) error {
	return apperrors.Forbidden(d.Rule, fmt.Sprintf("not permitted to access %s of this patient (%s)", action, d.Rule))
}

func (r *Resolver) rolesOf(ctx context.Context, userID uuid.UUID) ([]model.Role, error) {
	key := "roles:" + userID.String()
	if v, ok := r.cache.Get(key); ok {
		r.metrics.AccessCacheHits.WithLabelValues("roles", "hit").Inc()
		return v.([]model.Role), nil
	}
	r.metrics.AccessCacheHits.WithLabelValues("roles", "miss").Inc()

	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, apperrors.Internal(err)
	}
	r.cache.SetDefault(key, user.Roles)
	return user.Roles, nil
}

func (r *Resolver) ownerOf(ctx context.Context, patientProfileID uuid.UUID) (uuid.UUID, bool, error) {
	key := "owner:" + patientProfileID.String()
	if v, ok := r.cache.Get(key); ok {
		r.metrics.AccessCacheHits.WithLabelValues("owner", "hit").Inc()
		return v.(uuid.UUID), true, nil
	}
	r.metrics.AccessCacheHits.WithLabelValues("owner", "miss").Inc()

	profile, err := r.profiles.GetByID(ctx, patientProfileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, apperrors.Internal(err)
	}
	r.cache.SetDefault(key, profile.UserID)
	return profile.UserID, true, nil
}

func holds(roles []model.Role, role model.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
