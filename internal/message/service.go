// Package message implements the notification message service: paged
// queries with per-recipient read state, creation with fan-out to recipients,
// and deletion with cascading association cleanup.
package message

import (
	"context"
	"log/slog"

	"backoffice/internal/check"
	"backoffice/internal/types"
)

// MessageRepo is the data access needed for sys_message.
type MessageRepo interface {
	Insert(ctx context.Context, m *types.Message) (int64, error)
	GetByID(ctx context.Context, id int64) (*types.Message, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	SelectPage(ctx context.Context, q types.MessageQuery, p types.PageQuery) (types.PageData[types.MessageResp], error)
}

// RecipientRepo is the data access needed for the message-recipient association.
type RecipientRepo interface {
	Add(ctx context.Context, messageID int64, userIDs []int64) error
	DeleteByMessageIDs(ctx context.Context, messageIDs []int64) (int64, error)
	MarkRead(ctx context.Context, userID int64, messageIDs []int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

// NicknameLookup resolves a user's display name. It may fail.
type NicknameLookup interface {
	GetNicknameByID(ctx context.Context, userID int64) (string, error)
}

// TxManager runs fn in one transaction with repositories bound to it.
// fn returning an error rolls everything back.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, messages MessageRepo, recipients RecipientRepo) error) error
}

// Service orchestrates message CRUD.
//
// Dependencies (all injected via ServiceConfig):
//   - Messages / Recipients: pool-backed repositories for reads and single writes
//   - TxManager: transactional scope for Add and Delete
//   - Nicknames: creator display-name lookup used when filling responses
type Service struct {
	messages   MessageRepo
	recipients RecipientRepo
	nicknames  NicknameLookup
	txManager  TxManager
	clock      types.Clock
	logger     *slog.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Messages   MessageRepo
	Recipients RecipientRepo
	Nicknames  NicknameLookup
	TxManager  TxManager
	Clock      types.Clock
	Logger     *slog.Logger
}

// NewService creates a message Service.
// If Clock is nil, RealClock is used. If Logger is nil, slog.Default() is used.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		messages:   cfg.Messages,
		recipients: cfg.Recipients,
		nicknames:  cfg.Nicknames,
		txManager:  cfg.TxManager,
		clock:      clock,
		logger:     logger,
	}
}

// Page returns one page of messages matching q. Each row's creator nickname
// is resolved; a failed lookup leaves CreateUserString nil and does not fail
// the page.
func (s *Service) Page(ctx context.Context, q types.MessageQuery, p types.PageQuery) (types.PageData[types.MessageResp], error) {
	page, err := s.messages.SelectPage(ctx, q, p)
	if err != nil {
		return types.PageData[types.MessageResp]{}, err
	}

	resolved := make(map[int64]*string)
	for i := range page.List {
		s.fill(ctx, &page.List[i], resolved)
	}
	return page, nil
}

// Get returns a single message with its creator nickname filled.
func (s *Service) Get(ctx context.Context, id int64) (*types.MessageResp, error) {
	m, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check.IfNotExists(m, "MessageDO", "ID", id); err != nil {
		return nil, err
	}

	resp := &types.MessageResp{
		ID:         m.ID,
		Title:      m.Title,
		Content:    m.Content,
		Type:       m.Type,
		CreateUser: m.CreateUser,
		CreateTime: m.CreateTime,
	}
	s.fill(ctx, resp, nil)
	return resp, nil
}

// Add creates a message and one association per recipient. The insert and
// the fan-out commit together or not at all. The acting user, when present
// in ctx, is recorded as the creator.
func (s *Service) Add(ctx context.Context, req types.MessageReq, userIDs []int64) (int64, error) {
	if err := check.IfEmpty(userIDs, "消息接收人不能为空"); err != nil {
		return 0, err
	}

	msg := &types.Message{
		Title:      req.Title,
		Content:    req.Content,
		Type:       req.Type,
		CreateTime: s.clock.Now(),
	}
	if actor, ok := types.GetActor(ctx); ok {
		msg.CreateUser = &actor.UserID
	}
	recipients := dedupe(userIDs)

	var id int64
	err := s.txManager.RunInTx(ctx, func(ctx context.Context, messages MessageRepo, recipientRepo RecipientRepo) error {
		var err error
		if id, err = messages.Insert(ctx, msg); err != nil {
			return err
		}
		return recipientRepo.Add(ctx, id, recipients)
	})
	if err != nil {
		s.logger.Error("failed to create message", "error", err, "recipients", len(recipients))
		return 0, err
	}

	s.logger.Info("message created", "message_id", id, "recipients", len(recipients))
	return id, nil
}

// Delete removes the messages and every association referencing them in one
// transaction. An empty ids is a no-op.
func (s *Service) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	err := s.txManager.RunInTx(ctx, func(ctx context.Context, messages MessageRepo, recipients RecipientRepo) error {
		if _, err := messages.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
		_, err := recipients.DeleteByMessageIDs(ctx, ids)
		return err
	})
	if err != nil {
		s.logger.Error("failed to delete messages", "error", err, "ids", ids)
		return err
	}

	s.logger.Info("messages deleted", "ids", ids)
	return nil
}

// MarkRead marks the given messages read for userID. Empty ids marks every
// unread message of the user. Returns the number of associations changed.
func (s *Service) MarkRead(ctx context.Context, userID int64, ids []int64) (int64, error) {
	return s.recipients.MarkRead(ctx, userID, ids)
}

// CountUnread returns the number of unread messages for userID.
func (s *Service) CountUnread(ctx context.Context, userID int64) (int64, error) {
	return s.recipients.CountUnread(ctx, userID)
}

// fill resolves the creator nickname of resp. cache, when non-nil, memoizes
// lookups across the rows of one page (including failures).
func (s *Service) fill(ctx context.Context, resp *types.MessageResp, cache map[int64]*string) {
	if resp.CreateUser == nil {
		return
	}
	userID := *resp.CreateUser
	if cache != nil {
		if name, ok := cache[userID]; ok {
			resp.CreateUserString = name
			return
		}
	}

	name := s.nicknameOrNil(ctx, userID)
	resp.CreateUserString = name
	if cache != nil {
		cache[userID] = name
	}
}

// nicknameOrNil is the one place a lookup failure is swallowed: it is logged
// and reported as an absent name.
func (s *Service) nicknameOrNil(ctx context.Context, userID int64) *string {
	if s.nicknames == nil {
		return nil
	}
	name, err := s.nicknames.GetNicknameByID(ctx, userID)
	if err != nil {
		s.logger.Debug("creator nickname unavailable", "user_id", userID, "error", err)
		return nil
	}
	return &name
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
