package container

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do"
	"github.com/serroba/throttle/internal/analytics"
	analyticsstore "github.com/serroba/throttle/internal/analytics/store"
	"github.com/serroba/throttle/internal/messaging"
	"github.com/serroba/throttle/internal/ratelimit"
	"go.uber.org/zap"
)

// ConsumerGroupName is the Redis Streams consumer group of the analytics consumer.
const ConsumerGroupName = "throttle-analytics"

// PublisherGroupPackage provides the Redis Streams publisher and the
// analytics publisher built on it.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		redisConn := do.MustInvoke[*RedisConnection](i)
		logger := do.MustInvoke[*zap.Logger](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisConn.Client},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (*analytics.Publisher, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)

		return analytics.NewPublisher(
			group.Publisher(),
			do.MustInvoke[ratelimit.Clock](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// PostgresPool owns the connection pool and closes it on shutdown.
type PostgresPool struct {
	Pool *pgxpool.Pool
}

// Shutdown closes the pool.
func (p *PostgresPool) Shutdown() error {
	p.Pool.Close()

	return nil
}

// PostgresPackage provides the analytics store: PostgreSQL when a database
// URL is configured, otherwise a store that only logs.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)

		pool, err := pgxpool.New(context.Background(), opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			logger.Info("no database configured, analytics events are only logged")

			return analyticsstore.NewNoop(logger), nil
		}

		pg := analyticsstore.NewPostgres(do.MustInvoke[*PostgresPool](i).Pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}

		return pg, nil
	})
}

// ConsumerGroupPackage provides the analytics consumers reading from Redis Streams.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		redisConn := do.MustInvoke[*RedisConnection](i)
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        redisConn.Client,
				ConsumerGroup: ConsumerGroupName,
			},
			messaging.NewZapLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumers(subscriber, do.MustInvoke[analytics.Store](i), logger)...)

		return group, nil
	})
}
