package store

import (
	"context"

	models "commerce-api/model"
)

const (
	selectUserSQL = `SELECT id, name, email, role, created_at, updated_at FROM users WHERE id = $1`
	insertUserSQL = `INSERT INTO users (name, email, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
)

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.conn().QueryRowContext(ctx, selectUserSQL, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	err := s.conn().QueryRowContext(ctx, insertUserSQL, u.Name, u.Email, u.Role, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	return translate(err)
}
