package types

import (
	"time"
)

// MessageType classifies a notification message.
type MessageType int

const (
	MessageTypeSystem   MessageType = 1
	MessageTypeSecurity MessageType = 2
)

// Message is a notification persisted in sys_message.
type Message struct {
	ID         int64       `json:"id" db:"id"`
	Title      string      `json:"title" db:"title"`
	Content    string      `json:"content" db:"content"`
	Type       MessageType `json:"type" db:"type"`
	CreateUser *int64      `json:"create_user,omitempty" db:"create_user"`
	CreateTime time.Time   `json:"create_time" db:"create_time"`
}

// MessageUser is a recipient association in sys_message_user. Each row records
// the per-recipient read state of one message.
type MessageUser struct {
	MessageID int64      `json:"message_id" db:"message_id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	IsRead    bool       `json:"is_read" db:"is_read"`
	ReadTime  *time.Time `json:"read_time,omitempty" db:"read_time"`
}

// MessageReq is the payload for creating a message.
type MessageReq struct {
	Title   string      `json:"title" validate:"required,max=50"`
	Content string      `json:"content" validate:"required,max=255"`
	Type    MessageType `json:"type" validate:"required,oneof=1 2"`
}

// CreateMessageRequest is the HTTP body of POST /v1/messages.
type CreateMessageRequest struct {
	MessageReq
	UserIDs []int64 `json:"user_ids" validate:"dive,gt=0"`
}

// MessageQuery holds the optional filters of a message page query.
// UserID and IsRead filter on the per-recipient association.
type MessageQuery struct {
	Title  string       `json:"title,omitempty"`
	Type   *MessageType `json:"type,omitempty"`
	UserID *int64       `json:"user_id,omitempty"`
	IsRead *bool        `json:"is_read,omitempty"`
}

// MessageResp is one row of a message page, joined with the read state of the
// queried recipient. CreateUserString is resolved after the query and stays
// nil when the creator's nickname cannot be looked up.
type MessageResp struct {
	ID               int64       `json:"id"`
	Title            string      `json:"title"`
	Content          string      `json:"content"`
	Type             MessageType `json:"type"`
	IsRead           *bool       `json:"is_read,omitempty"`
	ReadTime         *time.Time  `json:"read_time,omitempty"`
	CreateUser       *int64      `json:"create_user,omitempty"`
	CreateUserString *string     `json:"create_user_string"`
	CreateTime       time.Time   `json:"create_time"`
}

// MarkReadRequest is the HTTP body of PATCH /v1/messages/read. An empty ID
// list marks every unread message of the caller.
type MarkReadRequest struct {
	IDs []int64 `json:"ids"`
}

// User is a back-office account persisted in sys_user.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Nickname     string    `json:"nickname" db:"nickname"`
	Email        *string   `json:"email,omitempty" db:"email"`
	PasswordHash string    `json:"-" db:"password"`
	CreateTime   time.Time `json:"create_time" db:"create_time"`
}

// UserReq is the payload for creating a user.
type UserReq struct {
	Username string  `json:"username" validate:"required,min=4,max=64"`
	Nickname string  `json:"nickname" validate:"required,max=30"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password string  `json:"password" validate:"required,min=6,max=32"`
}

// UpdatePasswordRequest is the HTTP body of PATCH /v1/users/{id}/password.
type UpdatePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=32"`
}

// UpdateEmailRequest is the HTTP body of PATCH /v1/users/{id}/email.
type UpdateEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// UpdateNicknameRequest is the HTTP body of PATCH /v1/users/{id}/nickname.
type UpdateNicknameRequest struct {
	Nickname string `json:"nickname" validate:"max=30"`
}

// IDResponse wraps a generated identifier.
type IDResponse struct {
	ID int64 `json:"id"`
}

// CountResponse wraps a count.
type CountResponse struct {
	Total int64 `json:"total"`
}
