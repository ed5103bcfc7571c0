package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateUser = errors.New("user already exists")
)

const (
	InsertUserQuery = `
        INSERT INTO
            users (login, hash)
        VALUES ($1, $2)
        RETURNING id::text
    `
	SelectUserQuery = `
        SELECT
            id::text,
            login,
            hash,
            is_admin
        FROM
            users
        WHERE
            login = $1
    `
	CountUsersQuery = `
        SELECT count(*) FROM users
    `
)

type UserDB struct {
	models.User
}

// CreateUser stores a customer account and returns its id.
func (d *Database) CreateUser(ctx context.Context, user UserDB) (string, error) {
	var id string
	if err := d.db.QueryRow(ctx, InsertUserQuery, user.Login, user.Hash).Scan(&id); err != nil {
		var e *pgconn.PgError
		if errors.As(err, &e) && e.Code == pgerrcode.UniqueViolation {
			return "", ErrDuplicateUser
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// FindUser returns nil without an error when the login is unknown.
func (d *Database) FindUser(ctx context.Context, login string) (*UserDB, error) {
	user := &UserDB{}

	err := d.db.QueryRow(ctx, SelectUserQuery, login).Scan(&user.ID, &user.Login, &user.Hash, &user.IsAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (d *Database) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRow(ctx, CountUsersQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
