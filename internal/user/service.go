// Package user manages back-office accounts and resolves their display names.
package user

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"backoffice/internal/check"
	"backoffice/internal/types"
)

// bcryptCost is the bcrypt cost factor used for password hashing.
const bcryptCost = 12

// UserRepo defines the data access methods needed by Service.
type UserRepo interface {
	Insert(ctx context.Context, u *types.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*types.User, error)
	GetByUsername(ctx context.Context, username string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateEmail(ctx context.Context, id int64, email string) error
	UpdateNickname(ctx context.Context, id int64, nickname string) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// TxManager runs fn in one transaction with a UserRepo bound to it.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, users UserRepo) error) error
}

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// NicknameInvalidator drops cached display names.
type NicknameInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...int64) error
}

type bcryptHasher struct{}

func (bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Service implements account creation, lookup, profile updates and deletion.
// Every business-rule failure is reported through the check package.
type Service struct {
	users     UserRepo
	txManager TxManager
	hasher    PasswordHasher
	nicknames NicknameInvalidator
	logger    *slog.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Users     UserRepo
	TxManager TxManager
	Hasher    PasswordHasher
	Nicknames NicknameInvalidator
	Logger    *slog.Logger
}

// NewService creates a user Service. Hasher defaults to bcrypt and Logger to
// slog.Default(). Nicknames may be nil when no cache is configured.
func NewService(cfg ServiceConfig) *Service {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = bcryptHasher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     cfg.Users,
		txManager: cfg.TxManager,
		hasher:    hasher,
		nicknames: cfg.Nicknames,
		logger:    logger,
	}
}

// Add creates an account and returns its id.
func (s *Service) Add(ctx context.Context, req types.UserReq) (int64, error) {
	if err := check.IfBlank(req.Username, "用户名不能为空"); err != nil {
		return 0, err
	}
	if err := check.IfBlank(req.Nickname, "昵称不能为空"); err != nil {
		return 0, err
	}

	existing, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return 0, err
	}
	if err := check.IfExists(existing, "UserDO", "用户名", req.Username); err != nil {
		return 0, err
	}

	var email *string
	if req.Email != nil && *req.Email != "" {
		owner, err := s.users.GetByEmail(ctx, *req.Email)
		if err != nil {
			return 0, err
		}
		if err := check.IfExists(owner, "UserDO", "邮箱", *req.Email); err != nil {
			return 0, err
		}
		email = req.Email
	}

	hash, err := s.hasher.GenerateFromPassword(req.Password)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	id, err := s.users.Insert(ctx, &types.User{
		Username:     req.Username,
		Nickname:     req.Nickname,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("user created", "user_id", id, "username", req.Username)
	return id, nil
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*types.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check.IfNotExists(u, "UserDO", "ID", id); err != nil {
		return nil, err
	}
	return u, nil
}

// UpdatePassword replaces the password after verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if err := check.IfEqual(newPassword, oldPassword, "新密码不能与当前密码相同"); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mismatch := s.hasher.CompareHashAndPassword(u.PasswordHash, oldPassword) != nil
	if err := check.If(mismatch, "当前密码错误"); err != nil {
		return err
	}

	hash, err := s.hasher.GenerateFromPassword(newPassword)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", "user_id", id)
	return nil
}

// UpdateEmail replaces the email address. The new address must differ from
// the current one and must not belong to another account.
func (s *Service) UpdateEmail(ctx context.Context, id int64, email string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := check.IfEqualIgnoreCase(email, u.Email, "新邮箱不能与当前邮箱相同"); err != nil {
		return err
	}
	owner, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := check.IfExists(owner, "UserDO", "邮箱", email); err != nil {
		return err
	}
	return s.users.UpdateEmail(ctx, id, email)
}

// UpdateNickname replaces the display name and drops any cached copy.
func (s *Service) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	if err := check.IfBlank(nickname, "昵称不能为空"); err != nil {
		return err
	}
	if err := s.users.UpdateNickname(ctx, id, nickname); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// Delete removes accounts along with their message associations. The acting
// user cannot delete themselves.
func (s *Service) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := check.IfFunc(func() bool {
		actor, ok := types.GetActor(ctx)
		return ok && slices.Contains(ids, actor.UserID)
	}, "不允许删除当前用户")
	if err != nil {
		return err
	}

	err = s.txManager.RunInTx(ctx, func(ctx context.Context, users UserRepo) error {
		_, err := users.DeleteByIDs(ctx, ids)
		return err
	})
	if err != nil {
		s.logger.Error("failed to delete users", "error", err, "ids", ids)
		return err
	}

	s.invalidate(ctx, ids...)
	s.logger.Info("users deleted", "ids", ids)
	return nil
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	if s.nicknames == nil {
		return
	}
	if err := s.nicknames.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("failed to invalidate cached nicknames", "ids", ids, "error", err)
	}
}
