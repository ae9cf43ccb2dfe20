package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository"
)

const connectionColumns = `
	id, patient_id, connected_user_id, created_by_id,
	connection_type, status, created_at, updated_at`

// connectionQueries runs against either the pool or an open transaction.
type connectionQueries struct {
	q sqlx.ExtContext
}

func (r *connectionRepository) RunInTx(ctx context.Context, fn func(q repository.ConnectionQueries) error) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&connectionQueries{q: tx})
	})
}

func (c *connectionQueries) Enqueue(ctx context.Context, event *model.OutboxEvent) error {
	return insertOutboxEvent(ctx, c.q, event)
}

func (c *connectionQueries) GetByID(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	var conn model.Connection
	if err := sqlx.GetContext(ctx, c.q, &conn, query, id); err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", translate(err))
	}
	return &conn, nil
}

func (c *connectionQueries) GetForParticipant(ctx context.Context, id, userID uuid.UUID, role model.Role) (*model.Connection, error) {
	var (
		conn model.Connection
		err  error
	)
	if role == model.RolePatient {
		query := `SELECT ` + connectionColumns + `
			FROM connections
			WHERE id = $1 AND patient_id = $2`
		err = sqlx.GetContext(ctx, c.q, &conn, query, id, userID)
	} else {
		query := `SELECT ` + connectionColumns + `
			FROM connections
			WHERE id = $1 AND connected_user_id = $2 AND connection_type = $3`
		err = sqlx.GetContext(ctx, c.q, &conn, query, id, userID, string(role))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", translate(err))
	}
	return &conn, nil
}

func (c *connectionQueries) FindOpen(ctx context.Context, patientID, connectedUserID uuid.UUID, connectionType model.ConnectionType) (*model.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE patient_id = $1 AND connected_user_id = $2 AND connection_type = $3
		AND status IN ('PENDING', 'ACCEPTED')
		LIMIT 1`

	var conn model.Connection
	err := sqlx.GetContext(ctx, c.q, &conn, query, patientID, connectedUserID, connectionType)
	if err != nil {
		if errors.Is(translate(err), repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open connection: %w", err)
	}
	return &conn, nil
}

func (c *connectionQueries) Create(ctx context.Context, conn *model.Connection) error {
	query := `
		INSERT INTO connections (
			id, patient_id, connected_user_id, created_by_id,
			connection_type, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := c.q.ExecContext(ctx, query,
		conn.ID,
		conn.PatientID,
		conn.ConnectedUserID,
		conn.CreatedByID,
		conn.ConnectionType,
		conn.Status,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", translate(err))
	}
	return nil
}

func (c *connectionQueries) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.ConnectionStatus, at time.Time) (bool, error) {
	query := `
		UPDATE connections
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := c.q.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update connection status: %w", translate(err))
	}
	return affected(res)
}

func (c *connectionQueries) ListForParticipant(ctx context.Context, userID uuid.UUID, role model.Role, filter model.ConnectionFilter) ([]*model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE `
	args := []interface{}{userID}

	if role == model.RolePatient {
		query += `patient_id = $1`
	} else {
		query += `connected_user_id = $1 AND connection_type = $2`
		args = append(args, string(role))
	}

	switch filter {
	case model.ConnectionFilterAccepted:
		query += ` AND status = 'ACCEPTED'`
	case model.ConnectionFilterPendingSent:
		query += ` AND status = 'PENDING' AND created_by_id = $1`
	case model.ConnectionFilterPendingReceived:
		query += ` AND status = 'PENDING' AND created_by_id <> $1`
	default:
		return nil, fmt.Errorf("unknown connection filter %q", filter)
	}
	query += ` ORDER BY created_at DESC`

	var conns []*model.Connection
	if err := sqlx.SelectContext(ctx, c.q, &conns, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return conns, nil
}

func (c *connectionQueries) HasAccepted(ctx context.Context, patientID, connectedUserID uuid.UUID, connectionType model.ConnectionType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM connections
			WHERE patient_id = $1 AND connected_user_id = $2
			AND connection_type = $3 AND status = 'ACCEPTED'
		)
	`
	var exists bool
	if err := sqlx.GetContext(ctx, c.q, &exists, query, patientID, connectedUserID, connectionType); err != nil {
		return false, fmt.Errorf("failed to check accepted connection: %w", err)
	}
	return exists, nil
}
