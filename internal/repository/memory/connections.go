package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

// Connections implements repository.ConnectionRepository.
type Connections struct{ s *Store }

func (s *Store) Connections() *Connections { return &Connections{s: s} }

type connQueries struct {
	s  *Store
	st *state
}

func (c *Connections) RunInTx(_ context.Context, fn func(q repository.ConnectionQueries) error) error {
	_, err := run(c.s, func(st *state) (struct{}, error) {
		return struct{}{}, fn(&connQueries{s: c.s, st: st})
	})
	return err
}

func (c *Connections) Enqueue(ctx context.Context, event *model.OutboxEvent) error {
	return c.RunInTx(ctx, func(q repository.ConnectionQueries) error { return q.Enqueue(ctx, event) })
}

func (c *Connections) GetByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	return run(c.s, func(st *state) (*model.Connection, error) {
		return (&connQueries{s: c.s, st: st}).GetByID(ctx, id)
	})
}

func (c *Connections) GetForParticipant(ctx context.Context, id, userID uuid.UUID, role model.Role) (*model.Connection, error) {
	return run(c.s, func(st *state) (*model.Connection, error) {
		return (&connQueries{s: c.s, st: st}).GetForParticipant(ctx, id, userID, role)
	})
}

func (c *Connections) FindOpen(ctx context.Context, patientID, connectedUserID uuid.UUID, t model.ConnectionType) (*model.Connection, error) {
	return run(c.s, func(st *state) (*model.Connection, error) {
		return (&connQueries{s: c.s, st: st}).FindOpen(ctx, patientID, connectedUserID, t)
	})
}

func (c *Connections) Create(ctx context.Context, conn *model.Connection) error {
	return c.RunInTx(ctx, func(q repository.ConnectionQueries) error { return q.Create(ctx, conn) })
}

func (c *Connections) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.ConnectionStatus, at time.Time) (bool, error) {
	return run(c.s, func(st *state) (bool, error) {
		return (&connQueries{s: c.s, st: st}).TransitionStatus(ctx, id, from, to, at)
	})
}

func (c *Connections) ListForParticipant(ctx context.Context, userID uuid.UUID, role model.Role, filter model.ConnectionFilter) ([]*model.Connection, error) {
	return run(c.s, func(st *state) ([]*model.Connection, error) {
		return (&connQueries{s: c.s, st: st}).ListForParticipant(ctx, userID, role, filter)
	})
}

func (c *Connections) HasAccepted(ctx context.Context, patientID, connectedUserID uuid.UUID, t model.ConnectionType) (bool, error) {
	return run(c.s, func(st *state) (bool, error) {
		return (&connQueries{s: c.s, st: st}).HasAccepted(ctx, patientID, connectedUserID, t)
	})
}

func (q *connQueries) Enqueue(_ context.Context, event *model.OutboxEvent) error {
	return q.s.enqueue(q.st, event)
}

func (q *connQueries) GetByID(_ context.Context, id uuid.UUID) (*model.Connection, error) {
	conn, ok := q.st.connections[id]
	if !ok {
		return nil, fmt.Errorf("failed to get connection: %w", repository.ErrNotFound)
	}
	return copyConnection(conn), nil
}

func (q *connQueries) GetForParticipant(_ context.Context, id, userID uuid.UUID, role model.Role) (*model.Connection, error) {
	conn, ok := q.st.connections[id]
	if ok && visible(conn, userID, role) {
		return copyConnection(conn), nil
	}
	return nil, fmt.Errorf("failed to get connection: %w", repository.ErrNotFound)
}

func visible(conn *model.Connection, userID uuid.UUID, role model.Role) bool {
	if role == model.RolePatient {
		return conn.PatientID == userID
	}
	return conn.ConnectedUserID == userID && conn.ConnectionType == model.ConnectionType(role)
}

func (q *connQueries) FindOpen(_ context.Context, patientID, connectedUserID uuid.UUID, t model.ConnectionType) (*model.Connection, error) {
	for _, conn := range q.st.connections {
		if conn.PatientID == patientID && conn.ConnectedUserID == connectedUserID &&
			conn.ConnectionType == t && conn.Status.Open() {
			return copyConnection(conn), nil
		}
	}
	return nil, nil
}

func (q *connQueries) Create(_ context.Context, conn *model.Connection) error {
	if conn.PatientID == conn.ConnectedUserID {
		return fmt.Errorf("failed to create connection: violates chk_connections_not_self")
	}
	if conn.CreatedByID != conn.PatientID && conn.CreatedByID != conn.ConnectedUserID {
		return fmt.Errorf("failed to create connection: violates chk_connections_created_by")
	}
	if _, ok := q.st.connections[conn.ID]; ok {
		return fmt.Errorf("failed to create connection: %w: connections_pkey", repository.ErrDuplicate)
	}
	if conn.Status.Open() {
		for _, other := range q.st.connections {
			if other.Status.Open() && other.PatientID == conn.PatientID &&
				other.ConnectedUserID == conn.ConnectedUserID && other.ConnectionType == conn.ConnectionType {
				return fmt.Errorf("failed to create connection: %w: uq_connections_open", repository.ErrDuplicate)
			}
		}
	}
	q.st.connections[conn.ID] = copyConnection(conn)
	return nil
}

func (q *connQueries) TransitionStatus(_ context.Context, id uuid.UUID, from, to model.ConnectionStatus, at time.Time) (bool, error) {
	conn, ok := q.st.connections[id]
	if !ok || conn.Status != from {
		return false, nil
	}
	conn.Status = to
	conn.UpdatedAt = at
	return true, nil
}

func (q *connQueries) ListForParticipant(_ context.Context, userID uuid.UUID, role model.Role, filter model.ConnectionFilter) ([]*model.Connection, error) {
	var out []*model.Connection
	for _, conn := range q.st.connections {
		if !visible(conn, userID, role) {
			continue
		}
		switch filter {
		case model.ConnectionFilterAccepted:
			if conn.Status != model.ConnectionStatusAccepted {
				continue
			}
		case model.ConnectionFilterPendingSent:
			if conn.Status != model.ConnectionStatusPending || conn.CreatedByID != userID {
				continue
			}
		case model.ConnectionFilterPendingReceived:
			if conn.Status != model.ConnectionStatusPending || conn.CreatedByID == userID {
				continue
			}
		default:
			return nil, fmt.Errorf("unknown connection filter %q", filter)
		}
		out = append(out, copyConnection(conn))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (q *connQueries) HasAccepted(_ context.Context, patientID, connectedUserID uuid.UUID, t model.ConnectionType) (bool, error) {
	for _, conn := range q.st.connections {
		if conn.PatientID == patientID && conn.ConnectedUserID == connectedUserID &&
			conn.ConnectionType == t && conn.Status == model.ConnectionStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}
