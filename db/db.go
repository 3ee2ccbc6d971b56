package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eventsphere/config"
	"eventsphere/models"
)

// Open connects the configured backend, prepares its schema and returns the store.
func Open(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (*models.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		if err := models.EnsureMongoIndexes(ctx, client.Database(cfg.MongoDB)); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDB).Msg("connected to MongoDB")
		return models.NewMongoStore(client, cfg.MongoDB, cfg.Timeout), nil

	case config.BackendPostgres:
		sqldb, err := ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := models.MigrateSQL(cfg.PostgresDSN); err != nil {
			_ = sqldb.Close()
			return nil, err
		}
		logger.Info().Msg("connected to PostgreSQL")
		return models.NewSQLStore(sqldb, cfg.Timeout), nil

	case config.BackendMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return models.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func ConnectPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	sqldb.SetMaxOpenConns(20)
	sqldb.SetMaxIdleConns(10)
	return sqldb, nil
}
