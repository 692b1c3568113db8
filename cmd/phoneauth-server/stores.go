package main

import (
	"context"
	"fmt"
	"time"

	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
	"github.com/MrEthical07/goPhoneAuth/accountstore/memory"
	mongostore "github.com/MrEthical07/goPhoneAuth/accountstore/mongo"
	"github.com/MrEthical07/goPhoneAuth/accountstore/postgres"
	"github.com/MrEthical07/goPhoneAuth/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

func openAccountStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (goPhoneAuth.AccountStore, func(), error) {
	switch cfg.AccountStore {
	case config.StoreMongo:
		return openMongo(ctx, cfg)
	case config.StorePostgres:
		return openPostgres(ctx, cfg)
	default:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		return memory.New(memory.EnforceUniqueVerified()), func() {}, nil
	}
}

func openMongo(ctx context.Context, cfg *config.Config) (goPhoneAuth.AccountStore, func(), error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(ctx)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(initCtx, nil); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	store := mongostore.New(client.Database(cfg.MongoDatabase), cfg.MongoCollection)
	if err := store.EnsureIndexes(initCtx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (goPhoneAuth.AccountStore, func(), error) {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(initCtx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}

	store := postgres.New(pool)
	if err := store.EnsureSchema(initCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
