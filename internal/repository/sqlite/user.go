package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// UserDB implements repository.UserRepository.
type UserDB struct {
	q querier
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, password_hash, first_name, last_name, date_joined,
	is_active, is_staff, is_superuser`

// Create inserts a new user and fills in the generated ID.
// DateJoined defaults to now when unset.
//
// The email column is UNIQUE; a duplicate is reported as apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}

	var hash sql.NullString
	if user.PasswordHash != nil {
		hash = sql.NullString{String: *user.PasswordHash, Valid: true}
	}

	result, err := u.q.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, date_joined,
		                    is_active, is_staff, is_superuser)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		hash,
		user.FirstName,
		user.LastName,
		user.DateJoined,
		user.IsActive,
		user.IsStaff,
		user.IsSuperuser,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return user, nil
}

// GetByEmail retrieves a user by their (exact) email address.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user model.User
		hash sql.NullString
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&hash,
		&user.FirstName,
		&user.LastName,
		&user.DateJoined,
		&user.IsActive,
		&user.IsStaff,
		&user.IsSuperuser,
	)
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		h := hash.String
		user.PasswordHash = &h
	}
	return &user, nil
}
