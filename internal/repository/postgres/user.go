package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/care-api/internal/model"
)

type userRow struct {
	ID    uuid.UUID      `db:"id"`
	Roles pq.StringArray `db:"roles"`
}

func (r *userRepository) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, roles
		FROM users
		WHERE id = $1
	`
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translate(err))
	}

	user := &model.User{ID: row.ID, Roles: make([]model.Role, 0, len(row.Roles))}
	for _, role := range row.Roles {
		user.Roles = append(user.Roles, model.Role(role))
	}
	return user, nil
}
