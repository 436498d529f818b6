package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/core"
	"backoffice/internal/types"
)

// UserService is the contract of user.Service used by the handler.
type UserService interface {
	Add(ctx context.Context, req types.UserReq) (int64, error)
	Get(ctx context.Context, id int64) (*types.User, error)
	UpdatePassword(ctx context.Context, id int64, oldPassword, newPassword string) error
	UpdateEmail(ctx context.Context, id int64, email string) error
	UpdateNickname(ctx context.Context, id int64, nickname string) error
	Delete(ctx context.Context, ids []int64) error
}

// UserHandler serves /v1/users.
type UserHandler struct {
	svc       UserService
	validator *core.Validator
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(svc UserService, v *core.Validator, l *slog.Logger) *UserHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UserHandler{svc: svc, validator: v, logger: l}
}

// RegisterRoutes mounts the user endpoints under /users.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
		r.Patch("/{id}/password", h.UpdatePassword)
		r.Patch("/{id}/email", h.UpdateEmail)
		r.Patch("/{id}/nickname", h.UpdateNickname)
	})
}

// Create handles POST /v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.UserReq
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	id, err := h.svc.Add(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusCreated, types.IDResponse{ID: id})
}

// Get handles GET /v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, u)
}

// UpdatePassword handles PATCH /v1/users/{id}/password. Callers may only
// change their own password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, err := h.selfID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req types.UpdatePasswordRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.UpdatePassword(r.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// UpdateEmail handles PATCH /v1/users/{id}/email. Callers may only change
// their own email.
func (h *UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	id, err := h.selfID(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req types.UpdateEmailRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.UpdateEmail(r.Context(), id, req.Email); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// UpdateNickname handles PATCH /v1/users/{id}/nickname. Blank nicknames are
// rejected by the service, so the body only enforces the length limit.
func (h *UserHandler) UpdateNickname(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req types.UpdateNicknameRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.UpdateNickname(r.Context(), id, req.Nickname); err != nil {
		core.Error(w, r, err)
		return
	}

	core.NoContent(w)
}

// Delete handles DELETE /v1/users/{id}, where {id} may be a comma-separated
// list.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), ids); err != nil {
		core.Error(w, r, err)
		return
	}

	actor, _ := types.GetActor(r.Context())
	h.logger.InfoContext(r.Context(), "users deleted",
		"ids", ids,
		"actor_id", actor.UserID,
	)
	core.NoContent(w)
}

// selfID returns the {id} path parameter after checking it names the caller.
func (h *UserHandler) selfID(r *http.Request) (int64, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, err
	}
	actor, err := requireActor(r)
	if err != nil {
		return 0, err
	}
	if actor.UserID != id {
		return 0, types.NewAppError(
			types.ErrCodePermissionDenied,
			"you can only change your own account",
			nil,
		)
	}
	return id, nil
}
