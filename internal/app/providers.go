package app

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/velora/chat-core/internal/config"
	"github.com/velora/chat-core/internal/ratelimit"
	"github.com/velora/chat-core/internal/repo/mongodb"
)

const connectTimeout = 10 * time.Second

func newMongoDB(lc fx.Lifecycle, cfg *config.Config) (*mongodb.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := mongodb.NewConnection(ctx, cfg.Database.URI, cfg.Database.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return db.Client.Ping(ctx, nil)
		},
		OnStop: func(ctx context.Context) error {
			return db.Close(ctx)
		},
	})
	return db, nil
}

func newRateLimitBank(lc fx.Lifecycle, cfg *config.Config) *ratelimit.Bank {
	bank := ratelimit.NewBank(ratelimit.BankConfig{
		MessageBurst:  cfg.Limits.MessageBurst,
		MessageWindow: cfg.Limits.MessageWindow,
		TypingBurst:   cfg.Limits.TypingBurst,
		TypingWindow:  cfg.Limits.TypingWindow,
		ConnectBurst:  cfg.Limits.ConnectBurst,
		ConnectWindow: cfg.Limits.ConnectWindow,
	})

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			bank.Close()
			return nil
		},
	})
	return bank
}

// EnsureIndexes creates the mongo indexes on startup.
func EnsureIndexes(lc fx.Lifecycle, db *mongodb.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return mongodb.EnsureIndexes(ctx, db)
		},
	})
}
