// Package main implements the job-runner CLI for one-off back-office
// operations: applying the schema, creating the first administrator and
// minting bearer tokens for local testing.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --task=migrate
//	go run ./cmd/tools/job-runner --task=create_user --username=admin --nickname=管理员 --password=admin123
//	go run ./cmd/tools/job-runner --task=issue_token --user-id=1 --username=admin --ttl=2h
//	go run ./cmd/tools/job-runner --list
//
// Configuration is read the same way as the API server (environment plus an
// optional .env file).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"backoffice/internal/config"
	"backoffice/internal/core"
	"backoffice/internal/db"
	"backoffice/internal/types"
	"backoffice/internal/user"
)

type taskType string

const (
	taskMigrate    taskType = "migrate"
	taskCreateUser taskType = "create_user"
	taskIssueToken taskType = "issue_token"
)

// validTasks is the exhaustive set of supported tasks.
var validTasks = map[taskType]string{
	taskMigrate:    "Apply the embedded database schema",
	taskCreateUser: "Create a user account (requires --username, --nickname, --password)",
	taskIssueToken: "Print a signed bearer token (requires --user-id)",
}

// options holds the parsed command line.
type options struct {
	task     taskType
	list     bool
	userID   int64
	username string
	nickname string
	email    string
	password string
	ttl      time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	var task string

	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&task, "task", "", "Task to execute (see --list)")
	fs.BoolVar(&opts.list, "list", false, "List all available tasks and exit")
	fs.Int64Var(&opts.userID, "user-id", 0, "Subject user id for issue_token")
	fs.StringVar(&opts.username, "username", "", "Username for create_user and issue_token")
	fs.StringVar(&opts.nickname, "nickname", "", "Nickname for create_user")
	fs.StringVar(&opts.email, "email", "", "Optional email for create_user")
	fs.StringVar(&opts.password, "password", "", "Password for create_user")
	fs.DurationVar(&opts.ttl, "ttl", time.Hour, "Token lifetime for issue_token")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.task = taskType(task)
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.list {
		printAvailableTasks(stdout)
		return nil
	}
	if opts.task == "" {
		return errors.New("--task is required")
	}
	if _, ok := validTasks[opts.task]; !ok {
		printAvailableTasks(stderr)
		return fmt.Errorf("unknown task %q", opts.task)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	switch opts.task {
	case taskIssueToken:
		return issueToken(cfg, opts, stdout)
	case taskMigrate, taskCreateUser:
		return withPool(ctx, cfg, func(pool db.DBTX, runner *db.TxRunner) error {
			if opts.task == taskMigrate {
				if err := db.Migrate(ctx, pool); err != nil {
					return err
				}
				logger.Info("schema applied")
				return nil
			}
			return createUser(ctx, pool, runner, opts, logger, stdout)
		})
	}
	return nil
}

func issueToken(cfg *config.Config, opts options, stdout io.Writer) error {
	if opts.userID <= 0 {
		return errors.New("--user-id must be a positive integer")
	}
	auth := core.NewJWTAuthenticator([]byte(cfg.Auth.JWTSecret.Unmask()), cfg.Auth.Issuer, cfg.Auth.Leeway, types.RealClock{})
	token, err := auth.IssueToken(opts.userID, opts.username, opts.ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}

func createUser(ctx context.Context, pool db.DBTX, runner *db.TxRunner, opts options, logger *slog.Logger, stdout io.Writer) error {
	svc := user.NewService(user.ServiceConfig{
		Users:     db.NewUserRepository(pool),
		TxManager: userTx{runner: runner},
		Logger:    logger,
	})

	req := types.UserReq{
		Username: opts.username,
		Nickname: opts.nickname,
		Password: opts.password,
	}
	if opts.email != "" {
		req.Email = &opts.email
	}
	if err := core.NewValidator(logger).ValidateStruct(req); err != nil {
		return err
	}

	id, err := svc.Add(ctx, req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "created user %d\n", id)
	return err
}

func withPool(ctx context.Context, cfg *config.Config, fn func(pool db.DBTX, runner *db.TxRunner) error) error {
	pool, err := db.NewPool(ctx, db.PoolOptions{
		URL:      cfg.Database.URL.Unmask(),
		MaxConns: 2,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool, db.NewTxRunner(pool))
}

type userTx struct{ runner *db.TxRunner }

func (u userTx) RunInTx(ctx context.Context, fn func(ctx context.Context, users user.UserRepo) error) error {
	return u.runner.Run(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, db.NewUserRepository(tx))
	})
}

func printAvailableTasks(w io.Writer) {
	names := make([]string, 0, len(validTasks))
	for t := range validTasks {
		names = append(names, string(t))
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available tasks:")
	for _, n := range names {
		fmt.Fprintf(w, "  %-12s %s\n", n, validTasks[taskType(n)])
	}
}
