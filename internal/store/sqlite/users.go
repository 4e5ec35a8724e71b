package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bookwormapp/bookworm/internal/domain"
	"github.com/bookwormapp/bookworm/internal/normalize"
	"github.com/bookwormapp/bookworm/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, username, email, password_hash, profile_image`

func scanUser(sc scanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
		updatedAt string
		hash      sql.NullString
	)

	if err := sc.Scan(&u.ID, &createdAt, &updatedAt, &u.Username, &u.Email, &hash, &u.ProfileImage); err != nil {
		return nil, err
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String

	return &u, nil
}

// CreateUser inserts a new user.
// Returns store.ErrEmailExists or store.ErrUsernameExists on conflicts.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, username, username_key,
			email, email_key, password_hash, profile_image
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		user.Username,
		normalize.Identity(user.Username),
		user.Email,
		normalize.Identity(user.Email),
		nullString(user.PasswordHash),
		user.ProfileImage,
	)
	switch {
	case err == nil:
		return nil
	case uniqueViolation(err, "users.email_key"):
		return store.ErrEmailExists
	case uniqueViolation(err, "users.username_key"):
		return store.ErrUsernameExists
	case uniqueViolation(err, ""):
		return store.ErrAlreadyExists
	default:
		return fmt.Errorf("insert user: %w", err)
	}
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserWhere(ctx, "email_key = ?", normalize.Identity(email))
}

// GetUserByUsername retrieves a user by username, ignoring case.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUserWhere(ctx, "username_key = ?", normalize.Identity(username))
}

// GetUsersByIDs returns the users found among ids.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
