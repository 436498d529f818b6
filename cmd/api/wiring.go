package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"backoffice/internal/api/handlers"
	"backoffice/internal/config"
	"backoffice/internal/core"
	"backoffice/internal/db"
	"backoffice/internal/message"
	"backoffice/internal/telemetry"
	"backoffice/internal/types"
	"backoffice/internal/user"
)

// dbPool is the subset of *pgxpool.Pool the server depends on.
type dbPool interface {
	db.DBTX
	db.TxBeginner
	Ping(ctx context.Context) error
}

// deps are the external resources opened by run. redis and metrics are
// optional.
type deps struct {
	pool    dbPool
	redis   *redis.Client
	metrics *telemetry.Collector
}

// buildServer wires repositories, services and handlers onto a core.Server
// and mounts the routes.
func buildServer(cfg *config.Config, logger *slog.Logger, d deps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}

	txRunner := db.NewTxRunner(d.pool)
	userRepo := db.NewUserRepository(d.pool)

	resolverCfg := user.NicknameResolverConfig{
		Source: userRepo,
		TTL:    cfg.Redis.NicknameTTL,
		Logger: logger,
	}
	if d.redis != nil {
		resolverCfg.Cache = d.redis
	}
	if d.metrics != nil {
		resolverCfg.Metrics = d.metrics
		srv.Metrics = d.metrics
	}
	nicknames := user.NewNicknameResolver(resolverCfg)

	messageSvc := message.NewService(message.ServiceConfig{
		Messages:   db.NewMessageRepository(d.pool),
		Recipients: db.NewMessageUserRepository(d.pool),
		Nicknames:  nicknames,
		TxManager:  messageTxManager{runner: txRunner},
		Logger:     logger,
	})
	userSvc := user.NewService(user.ServiceConfig{
		Users:     userRepo,
		TxManager: userTxManager{runner: txRunner},
		Nicknames: nicknames,
		Logger:    logger,
	})

	srv.Authenticator = core.NewJWTAuthenticator(
		[]byte(cfg.Auth.JWTSecret.Unmask()),
		cfg.Auth.Issuer,
		cfg.Auth.Leeway,
		types.RealClock{},
	)

	srv.HealthProbes = append(srv.HealthProbes, core.NewPingProbe("database", d.pool.Ping))
	if d.redis != nil {
		rdb := d.redis
		srv.HealthProbes = append(srv.HealthProbes, core.NewPingProbe("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	messageHandler := handlers.NewMessageHandler(messageSvc, srv.Validator, logger)
	userHandler := handlers.NewUserHandler(userSvc, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		messageHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
	)

	srv.MountRoutes()
	return srv, nil
}

// messageTxManager runs message work inside one pgx transaction.
type messageTxManager struct {
	runner *db.TxRunner
}

func (m messageTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, messages message.MessageRepo, recipients message.RecipientRepo) error) error {
	return m.runner.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, db.NewMessageRepository(tx), db.NewMessageUserRepository(tx))
	})
}

// userTxManager runs user work inside one pgx transaction.
type userTxManager struct {
	runner *db.TxRunner
}

func (m userTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, users user.UserRepo) error) error {
	return m.runner.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, db.NewUserRepository(tx))
	})
}
