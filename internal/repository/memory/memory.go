// Package memory is an in-process store that enforces the same uniqueness
// and check constraints as the postgres schema. Transactions run on a copy
// of the state that is swapped in on success.
package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
)

type state struct {
	users       map[uuid.UUID]*model.User
	profiles    map[uuid.UUID]*model.PatientProfile
	connections map[uuid.UUID]*model.Connection
	schedules   map[uuid.UUID]*model.Schedule
	medications map[uuid.UUID]*model.Medication
	events      []*model.OutboxEvent
}

func newState() *state {
	return &state{
		users:       make(map[uuid.UUID]*model.User),
		profiles:    make(map[uuid.UUID]*model.PatientProfile),
		connections: make(map[uuid.UUID]*model.Connection),
		schedules:   make(map[uuid.UUID]*model.Schedule),
		medications: make(map[uuid.UUID]*model.Medication),
	}
}

// clone copies every mutable row. Users and profiles are only written by
// the seeding helpers and are shared.
func (st *state) clone() *state {
	c := &state{
		users:       st.users,
		profiles:    st.profiles,
		connections: make(map[uuid.UUID]*model.Connection, len(st.connections)),
		schedules:   make(map[uuid.UUID]*model.Schedule, len(st.schedules)),
		medications: make(map[uuid.UUID]*model.Medication, len(st.medications)),
		events:      append([]*model.OutboxEvent(nil), st.events...),
	}
	for id, v := range st.connections {
		c.connections[id] = copyConnection(v)
	}
	for id, v := range st.schedules {
		c.schedules[id] = copySchedule(v)
	}
	for id, v := range st.medications {
		cp := *v
		c.medications[id] = &cp
	}
	return c
}

// Store holds the shared state behind the repository views.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// run executes fn on a copy of the state and commits it when fn succeeds.
func run[T any](s *Store, fn func(st *state) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.st.clone()
	out, err := fn(next)
	if err == nil {
		s.st = next
	}
	return out, err
}

// AddUser seeds a user holding roles.
func (s *Store) AddUser(roles ...model.Role) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &model.User{ID: uuid.New(), Roles: append([]model.Role(nil), roles...)}
	s.st.users[u.ID] = u
	return u
}

// AddPatientProfile seeds the profile of a user holding PATIENT.
func (s *Store) AddPatientProfile(userID uuid.UUID) *model.PatientProfile {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &model.PatientProfile{UserID: userID}
	p.ID = uuid.New()
	s.st.profiles[p.ID] = p
	return p
}

// Events returns the care events committed so far.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.OutboxEvent(nil), s.st.events...)
}

// ScheduleCount returns the number of stored schedules of domain.
func (s *Store) ScheduleCount(domain model.Domain) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sched := range s.st.schedules {
		if sched.Domain == domain {
			n++
		}
	}
	return n
}

func (s *Store) enqueue(st *state, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	cp := *event
	st.events = append(st.events, &cp)
	return nil
}

func copyConnection(c *model.Connection) *model.Connection {
	cp := *c
	return &cp
}

func copySchedule(s *model.Schedule) *model.Schedule {
	cp := *s
	cp.CustomDays = append(model.Weekdays(nil), s.CustomDays...)
	if s.DurationDays != nil {
		v := *s.DurationDays
		cp.DurationDays = &v
	}
	if s.SugarType != nil {
		v := *s.SugarType
		cp.SugarType = &v
	}
	if s.MedicationID != nil {
		v := *s.MedicationID
		cp.MedicationID = &v
	}
	if s.DosageInstruction != nil {
		v := *s.DosageInstruction
		cp.DosageInstruction = &v
	}
	return &cp
}
