package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"backoffice/internal/types"
)

// MessageRepository provides data access for the sys_message table.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository backed by the given
// database connection (pool or transaction).
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// messageSortColumns whitelists the sort keys a page query may use.
// Keys are accepted in both camelCase and snake_case.
var messageSortColumns = map[string]string{
	"id":          "t1.id",
	"title":       "t1.title",
	"type":        "t1.type",
	"createTime":  "t1.create_time",
	"create_time": "t1.create_time",
}

// recipientSortColumns are only sortable when the page is scoped to one recipient.
var recipientSortColumns = map[string]string{
	"isRead":    "t2.is_read",
	"is_read":   "t2.is_read",
	"readTime":  "t2.read_time",
	"read_time": "t2.read_time",
}

const defaultMessageOrder = "t1.create_time DESC, t1.id DESC"

// Insert stores a message and returns its generated id. The generated id and
// creation time are written back into m.
func (r *MessageRepository) Insert(ctx context.Context, m *types.Message) (int64, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO sys_message (title, content, type, create_user, create_time)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		 RETURNING id, create_time`,
		m.Title,
		nilIfEmpty(m.Content),
		int(m.Type),
		m.CreateUser,
		nilIfZeroTime(m.CreateTime),
	).Scan(&m.ID, &m.CreateTime)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to insert message", err)
	}
	return m.ID, nil
}

// GetByID returns the message with the given id, or nil and no error when
// none exists.
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*types.Message, error) {
	var (
		m       types.Message
		content *string
		typ     int
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, title, content, type, create_user, create_time
		 FROM sys_message
		 WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.Title, &content, &typ, &m.CreateUser, &m.CreateTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve message", err)
	}
	if content != nil {
		m.Content = *content
	}
	m.Type = types.MessageType(typ)
	return &m, nil
}

// DeleteByIDs removes the messages with the given ids and returns how many
// rows were deleted.
func (r *MessageRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sys_message WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete messages", err)
	}
	return tag.RowsAffected(), nil
}

// SelectPage returns one page of messages matching q.
//
// When q.UserID is set the page is scoped to that recipient and each row
// carries the recipient's read state; q.IsRead then filters on it. Without a
// recipient, q.IsRead matches messages having any recipient in that state and
// the read columns are left NULL.
func (r *MessageRepository) SelectPage(ctx context.Context, q types.MessageQuery, p types.PageQuery) (types.PageData[types.MessageResp], error) {
	p = p.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	from := "FROM sys_message t1"
	readColumns := "NULL::boolean, NULL::timestamptz"

	if q.UserID != nil {
		from += fmt.Sprintf(" JOIN sys_message_user t2 ON t2.message_id = t1.id AND t2.user_id = $%d", argIdx)
		readColumns = "t2.is_read, t2.read_time"
		args = append(args, *q.UserID)
		argIdx++

		if q.IsRead != nil {
			conditions = append(conditions, fmt.Sprintf("t2.is_read = $%d", argIdx))
			args = append(args, *q.IsRead)
			argIdx++
		}
	} else if q.IsRead != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM sys_message_user t2 WHERE t2.message_id = t1.id AND t2.is_read = $%d)", argIdx))
		args = append(args, *q.IsRead)
		argIdx++
	}

	if title := strings.TrimSpace(q.Title); title != "" {
		conditions = append(conditions, fmt.Sprintf("t1.title ILIKE $%d", argIdx))
		args = append(args, "%"+escapeLike(title)+"%")
		argIdx++
	}

	if q.Type != nil {
		conditions = append(conditions, fmt.Sprintf("t1.type = $%d", argIdx))
		args = append(args, int(*q.Type))
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, err := messageOrderBy(p.Sort, q.UserID != nil)
	if err != nil {
		return types.PageData[types.MessageResp]{}, err
	}

	var total int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) "+from+whereClause, args...).Scan(&total); err != nil {
		return types.PageData[types.MessageResp]{}, types.NewAppError(types.ErrCodeInternalDB, "failed to count messages", err)
	}

	page := types.PageData[types.MessageResp]{List: []types.MessageResp{}, Total: total}
	if total == 0 {
		return page, nil
	}

	query := fmt.Sprintf(
		`SELECT t1.id, t1.title, t1.content, t1.type, t1.create_user, t1.create_time, %s
		 %s%s
		 ORDER BY %s
		 LIMIT $%d OFFSET $%d`,
		readColumns, from, whereClause, orderBy, argIdx, argIdx+1,
	)
	args = append(args, p.Size, p.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return types.PageData[types.MessageResp]{}, types.NewAppError(types.ErrCodeInternalDB, "failed to list messages", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resp    types.MessageResp
			content *string
			typ     int
		)
		if err := rows.Scan(
			&resp.ID,
			&resp.Title,
			&content,
			&typ,
			&resp.CreateUser,
			&resp.CreateTime,
			&resp.IsRead,
			&resp.ReadTime,
		); err != nil {
			return types.PageData[types.MessageResp]{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message row", err)
		}
		if content != nil {
			resp.Content = *content
		}
		resp.Type = types.MessageType(typ)
		page.List = append(page.List, resp)
	}
	if err := rows.Err(); err != nil {
		return types.PageData[types.MessageResp]{}, types.NewAppError(types.ErrCodeInternalDB, "error iterating message rows", err)
	}

	return page, nil
}

// messageOrderBy translates "field" / "field,asc|desc" sort entries into an
// ORDER BY clause. Unknown fields are rejected rather than interpolated.
func messageOrderBy(sort []string, scoped bool) (string, error) {
	if len(sort) == 0 {
		return defaultMessageOrder, nil
	}

	parts := make([]string, 0, len(sort)+1)
	for _, entry := range sort {
		field, dir, _ := strings.Cut(strings.TrimSpace(entry), ",")
		field = strings.TrimSpace(field)

		column, ok := messageSortColumns[field]
		if !ok && scoped {
			column, ok = recipientSortColumns[field]
		}
		if !ok {
			return "", types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidQuery,
				"unsupported sort field",
				nil,
				map[string]any{"sort": field},
			)
		}

		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			parts = append(parts, column+" ASC")
		case "desc":
			parts = append(parts, column+" DESC")
		default:
			return "", types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidQuery,
				"sort direction must be asc or desc",
				nil,
				map[string]any{"sort": entry},
			)
		}
	}
	// Stable paging across equal sort keys.
	parts = append(parts, "t1.id DESC")
	return strings.Join(parts, ", "), nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
