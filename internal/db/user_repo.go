package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/types"
)

// UserRepository provides data access for the sys_user table.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given
// database connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// userColumns defines the standard set of columns selected for user queries.
// Used consistently across all query methods to avoid column drift.
const userColumns = `id, username, nickname, email, password, create_time`

// Unique indexes on sys_user (see schema.sql).
const (
	constraintUsername = "uk_user_username"
	constraintEmail    = "uk_user_email"
)

// scanUser scans a single user row. The columns must match the order defined
// in userColumns. A missing row yields nil, nil.
func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Nickname,
		&u.Email,
		&u.PasswordHash,
		&u.CreateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Insert creates a user and returns the generated id. A race on the unique
// username or email index surfaces as a conflict error.
func (r *UserRepository) Insert(ctx context.Context, u *types.User) (int64, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO sys_user (username, nickname, email, password, create_time)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		 RETURNING id, create_time`,
		u.Username,
		u.Nickname,
		u.Email,
		u.PasswordHash,
		nilIfZeroTime(u.CreateTime),
	).Scan(&u.ID, &u.CreateTime)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			if constraint == constraintEmail {
				return 0, types.NewAppError(types.ErrCodeConflictEmail, "email already in use", err)
			}
			return 0, types.NewAppError(types.ErrCodeConflictUsername, "username already in use", err)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to create user", err)
	}
	return u.ID, nil
}

// GetByID returns the user with the given id, or nil when none exists.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM sys_user WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user", err)
	}
	return u, nil
}

// GetByUsername returns the user with the given username, or nil.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM sys_user WHERE username = $1`,
		username,
	))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by username", err)
	}
	return u, nil
}

// GetByEmail returns the user owning email (compared case-insensitively), or nil.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM sys_user WHERE LOWER(email) = LOWER($1)`,
		email,
	))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by email", err)
	}
	return u, nil
}

// GetNicknameByID returns the display name of a user.
// Returns ErrCodeNotFoundUser when the user does not exist.
func (r *UserRepository) GetNicknameByID(ctx context.Context, id int64) (string, error) {
	var nickname string
	err := r.db.QueryRow(ctx,
		`SELECT nickname FROM sys_user WHERE id = $1`,
		id,
	).Scan(&nickname)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve nickname", err)
	}
	return nickname, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.updateColumn(ctx, `UPDATE sys_user SET password = $1 WHERE id = $2`, passwordHash, id, "password")
}

// UpdateEmail replaces the user's email address.
func (r *UserRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	return r.updateColumn(ctx, `UPDATE sys_user SET email = $1 WHERE id = $2`, email, id, "email")
}

// UpdateNickname replaces the user's display name.
func (r *UserRepository) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	return r.updateColumn(ctx, `UPDATE sys_user SET nickname = $1 WHERE id = $2`, nickname, id, "nickname")
}

func (r *UserRepository) updateColumn(ctx context.Context, sql string, value any, id int64, column string) error {
	tag, err := r.db.Exec(ctx, sql, value, id)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok && constraint == constraintEmail {
			return types.NewAppError(types.ErrCodeConflictEmail, "email already in use", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update user "+column, err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}
	return nil
}

// DeleteByIDs removes the given users together with their message
// associations and returns how many users were deleted.
func (r *UserRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if _, err := r.db.Exec(ctx, `DELETE FROM sys_message_user WHERE user_id = ANY($1)`, ids); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete user message associations", err)
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM sys_user WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete users", err)
	}
	return tag.RowsAffected(), nil
}
