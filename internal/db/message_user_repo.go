package db

import (
	"context"

	"backoffice/internal/types"
)

// MessageUserRepository provides data access for sys_message_user, the
// per-recipient association of a message.
type MessageUserRepository struct {
	db DBTX
}

// NewMessageUserRepository creates a new MessageUserRepository backed by the
// given database connection (pool or transaction).
func NewMessageUserRepository(db DBTX) *MessageUserRepository {
	return &MessageUserRepository{db: db}
}

// Add creates one unread association per recipient in a single statement.
// Duplicate recipient ids collapse into one row.
func (r *MessageUserRepository) Add(ctx context.Context, messageID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sys_message_user (message_id, user_id, is_read)
		 SELECT $1, u.user_id, FALSE
		 FROM unnest($2::bigint[]) AS u(user_id)
		 ON CONFLICT (message_id, user_id) DO NOTHING`,
		messageID,
		userIDs,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to add message recipients", err)
	}
	return nil
}

// DeleteByMessageIDs removes every association referencing the given messages.
func (r *MessageUserRepository) DeleteByMessageIDs(ctx context.Context, messageIDs []int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sys_message_user WHERE message_id = ANY($1)`,
		messageIDs,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete message recipients", err)
	}
	return tag.RowsAffected(), nil
}

// MarkRead flags the user's unread associations as read. An empty
// messageIDs marks all of them. Returns the number of rows changed.
func (r *MessageUserRepository) MarkRead(ctx context.Context, userID int64, messageIDs []int64) (int64, error) {
	sql := `UPDATE sys_message_user SET is_read = TRUE, read_time = NOW()
		 WHERE user_id = $1 AND is_read = FALSE`
	args := []any{userID}
	if len(messageIDs) > 0 {
		sql += ` AND message_id = ANY($2)`
		args = append(args, messageIDs)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to mark messages read", err)
	}
	return tag.RowsAffected(), nil
}

// CountUnread returns how many unread messages the user has.
func (r *MessageUserRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM sys_message_user WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count unread messages", err)
	}
	return count, nil
}
