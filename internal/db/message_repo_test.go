package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"backoffice/internal/types"
)

func sqlContaining(parts ...string) any {
	return mock.MatchedBy(func(sql string) bool {
		for _, p := range parts {
			if !strings.Contains(sql, p) {
				return false
			}
		}
		return true
	})
}

func TestMessageRepository_Insert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	msg := &types.Message{
		Title:      "系统维护通知",
		Content:    "今晚 22:00 停机维护",
		Type:       types.MessageTypeSystem,
		CreateUser: ptr(int64(1)),
	}

	row := &mockRow{values: []any{int64(42), now}}
	db.On("QueryRow", ctx, sqlContaining("INSERT INTO sys_message", "RETURNING id"),
		[]any{"系统维护通知", ptr("今晚 22:00 停机维护"), 1, ptr(int64(1)), (*time.Time)(nil)}).
		Return(row)

	id, err := repo.Insert(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, now, msg.CreateTime)
	db.AssertExpectations(t)
}

func TestMessageRepository_Insert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, err := repo.Insert(context.Background(), &types.Message{Title: "t"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestMessageRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewMessageRepository(db)
		db.On("QueryRow", ctx, sqlContaining("FROM sys_message"), []any{int64(7)}).
			Return(&mockRow{values: []any{int64(7), "标题", ptr("内容"), 2, (*int64)(nil), now}})

		msg, err := repo.GetByID(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, int64(7), msg.ID)
		assert.Equal(t, "内容", msg.Content)
		assert.Equal(t, types.MessageTypeSecurity, msg.Type)
		assert.Nil(t, msg.CreateUser)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewMessageRepository(db)
		db.On("QueryRow", ctx, mock.Anything, mock.Anything).Return(&mockRow{scanErr: pgx.ErrNoRows})

		msg, err := repo.GetByID(ctx, 8)
		require.NoError(t, err)
		assert.Nil(t, msg)
	})

	t.Run("db error", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewMessageRepository(db)
		db.On("QueryRow", ctx, mock.Anything, mock.Anything).Return(&mockRow{scanErr: errors.New("timeout")})

		_, err := repo.GetByID(ctx, 8)
		assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
	})
}

func TestMessageRepository_DeleteByIDs(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, "DELETE FROM sys_message WHERE id = ANY($1)", []any{[]int64{1, 2}}).
		Return(pgconn.NewCommandTag("DELETE 2"), nil)

	n, err := repo.DeleteByIDs(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	db.AssertExpectations(t)
}

func TestMessageRepository_DeleteByIDs_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)

	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	_, err := repo.DeleteByIDs(context.Background(), []int64{1})
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestMessageRepository_SelectPage_ScopedToRecipient(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	userID := int64(5)
	isRead := true
	q := types.MessageQuery{UserID: &userID, IsRead: &isRead}
	p := types.PageQuery{Page: 2, Size: 1}

	db.On("QueryRow", ctx,
		sqlContaining("SELECT COUNT(*)", "JOIN sys_message_user t2 ON t2.message_id = t1.id AND t2.user_id = $1", "t2.is_read = $2"),
		[]any{int64(5), true}).
		Return(&mockRow{values: []any{int64(2)}})

	rows := newMockRows([][]any{
		{int64(11), "欢迎", ptr("欢迎使用"), 1, ptr(int64(1)), now, ptr(true), ptr(now)},
	})
	db.On("Query", ctx,
		sqlContaining("t2.is_read, t2.read_time", "ORDER BY t1.create_time DESC, t1.id DESC", "LIMIT $3 OFFSET $4"),
		[]any{int64(5), true, 1, 1}).
		Return(rows, nil)

	page, err := repo.SelectPage(ctx, q, p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.List, 1)

	got := page.List[0]
	assert.Equal(t, int64(11), got.ID)
	assert.Equal(t, "欢迎使用", got.Content)
	assert.Equal(t, types.MessageTypeSystem, got.Type)
	require.NotNil(t, got.IsRead)
	assert.True(t, *got.IsRead)
	assert.Equal(t, now, *got.ReadTime)
	assert.Equal(t, int64(1), *got.CreateUser)
	assert.Nil(t, got.CreateUserString)
	assert.True(t, rows.closed)
	db.AssertExpectations(t)
}

func TestMessageRepository_SelectPage_UnscopedFilters(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	isRead := false
	typ := types.MessageTypeSecurity
	q := types.MessageQuery{Title: " 50%_off ", Type: &typ, IsRead: &isRead}

	db.On("QueryRow", ctx,
		sqlContaining("EXISTS (SELECT 1 FROM sys_message_user t2 WHERE t2.message_id = t1.id AND t2.is_read = $1)",
			"t1.title ILIKE $2", "t1.type = $3"),
		[]any{false, `%50\%\_off%`, 2}).
		Return(&mockRow{values: []any{int64(1)}})

	db.On("Query", ctx,
		sqlContaining("NULL::boolean, NULL::timestamptz", "ORDER BY t1.title ASC, t1.id DESC", "LIMIT $4 OFFSET $5"),
		[]any{false, `%50\%\_off%`, 2, 10, 0}).
		Return(newMockRows([][]any{
			{int64(3), "50%_off", (*string)(nil), 2, (*int64)(nil), time.Now(), nil, nil},
		}), nil)

	page, err := repo.SelectPage(ctx, q, types.PageQuery{Sort: []string{"title,asc"}})
	require.NoError(t, err)
	require.Len(t, page.List, 1)
	assert.Nil(t, page.List[0].IsRead)
	assert.Empty(t, page.List[0].Content)
	db.AssertExpectations(t)
}

func TestMessageRepository_SelectPage_EmptySkipsListQuery(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, []any(nil)).Return(&mockRow{values: []any{int64(0)}})

	page, err := repo.SelectPage(context.Background(), types.MessageQuery{}, types.PageQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.NotNil(t, page.List)
	assert.Empty(t, page.List)
	db.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageRepository_SelectPage_InvalidSort(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)

	_, err := repo.SelectPage(context.Background(), types.MessageQuery{},
		types.PageQuery{Sort: []string{"content; DROP TABLE sys_user"}})

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidQuery))
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageRepository_SelectPage_ScanError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewMessageRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(&mockRow{values: []any{int64(1)}})
	rows := newMockRows([][]any{{}})
	rows.scanErr = errors.New("invalid column type")
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

	_, err := repo.SelectPage(context.Background(), types.MessageQuery{}, types.PageQuery{})
	assert.True(t, types.IsCode(err, types.ErrCodeInternalDB))
}

func TestMessageOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		sort    []string
		scoped  bool
		want    string
		wantErr bool
	}{
		{name: "default", want: "t1.create_time DESC, t1.id DESC"},
		{name: "camel case asc", sort: []string{"createTime,asc"}, want: "t1.create_time ASC, t1.id DESC"},
		{name: "snake case default direction", sort: []string{"create_time"}, want: "t1.create_time ASC, t1.id DESC"},
		{name: "multiple", sort: []string{"type,desc", "title"}, want: "t1.type DESC, t1.title ASC, t1.id DESC"},
		{name: "recipient column when scoped", sort: []string{"isRead, DESC"}, scoped: true, want: "t2.is_read DESC, t1.id DESC"},
		{name: "recipient column when unscoped", sort: []string{"isRead"}, wantErr: true},
		{name: "bad direction", sort: []string{"title,sideways"}, wantErr: true},
		{name: "unknown field", sort: []string{"password"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := messageOrderBy(tt.sort, tt.scoped)
			if tt.wantErr {
				assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidQuery))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
