package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/core"
	"backoffice/internal/types"
)

// MessageService is the contract of message.Service used by the handler.
type MessageService interface {
	Page(ctx context.Context, q types.MessageQuery, p types.PageQuery) (types.PageData[types.MessageResp], error)
	Get(ctx context.Context, id int64) (*types.MessageResp, error)
	Add(ctx context.Context, req types.MessageReq, userIDs []int64) (int64, error)
	Delete(ctx context.Context, ids []int64) error
	MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

// MessageHandler serves /v1/messages.
type MessageHandler struct {
	svc       MessageService
	validator *core.Validator
	logger    *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(svc MessageService, v *core.Validator, l *slog.Logger) *MessageHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MessageHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the message endpoints under /messages.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/messages", func(r chi.Router) {
		r.Get("/", h.Page)
		r.Post("/", h.Create)
		r.Get("/unread", h.CountUnread)
		r.Patch("/read", h.MarkRead)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
	})
}

// Page handles GET /v1/messages.
//
// Filters: title (substring), type and is_read. The page is always scoped to
// the caller's inbox; a user_id naming anyone else is rejected with 403.
func (h *MessageHandler) Page(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	page, err := parsePageQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	query, err := parseMessageQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if query.UserID != nil && *query.UserID != actor.UserID {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionDenied,
			"messages of other users cannot be listed",
			nil,
		))
		return
	}
	query.UserID = &actor.UserID

	data, err := h.svc.Page(r.Context(), query, page)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if data.List == nil {
		data.List = []types.MessageResp{}
	}

	core.Data(w, r, http.StatusOK, data)
}

func parseMessageQuery(r *http.Request) (types.MessageQuery, error) {
	values := r.URL.Query()
	q := types.MessageQuery{Title: values.Get("title")}

	if v := values.Get("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || (types.MessageType(n) != types.MessageTypeSystem && types.MessageType(n) != types.MessageTypeSecurity) {
			return q, invalidQuery("type must be one of [1 2]")
		}
		t := types.MessageType(n)
		q.Type = &t
	}
	if v := values.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return q, invalidQuery("user_id must be a positive integer")
		}
		q.UserID = &id
	}
	if v := values.Get("is_read"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, invalidQuery("is_read must be true or false")
		}
		q.IsRead = &b
	}
	return q, nil
}

// Get handles GET /v1/messages/{id}.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	msg, err := h.svc.Get(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, msg)
}

// Create handles POST /v1/messages and answers 201 with the new id.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.CreateMessageRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	id, err := h.svc.Add(r.Context(), req.MessageReq, req.UserIDs)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "message created",
		"message_id", id,
		"recipients", len(req.UserIDs),
	)
	core.Data(w, r, http.StatusCreated, types.IDResponse{ID: id})
}

// Delete handles DELETE /v1/messages/{id}, where {id} may be a
// comma-separated list.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), ids); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// MarkRead handles PATCH /v1/messages/read for the calling user. An empty
// body or id list marks every unread message.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req types.MarkReadRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	n, err := h.svc.MarkRead(r.Context(), actor.UserID, req.IDs)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, types.CountResponse{Total: n})
}

// CountUnread handles GET /v1/messages/unread for the calling user.
func (h *MessageHandler) CountUnread(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	n, err := h.svc.CountUnread(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, types.CountResponse{Total: n})
}
