package container

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// Options holds the service configuration. humacli exposes every field as a
// flag and as a SERVICE_ prefixed environment variable.
type Options struct {
	Port                   int    `default:"8888"           help:"Port to listen on"                                            short:"p"`
	MaxRequests            int    `default:"100"            help:"Requests allowed per client per window"                       short:"m"`
	WindowSeconds          int    `default:"60"             help:"Rate limit window length in seconds"                          short:"w"`
	IdleWindows            int    `default:"2"              help:"Windows a client may stay silent before its state is evicted"`
	CleanupIntervalSeconds int    `default:"300"            help:"Seconds between idle client sweeps"`
	Shards                 int    `default:"32"             help:"Number of limiter shards"`
	TrustProxy             bool   `default:"false"          help:"Take the client address from X-Forwarded-For and X-Real-IP"`
	AnonymousKey           string `help:"Shared limit key for requests without a client address; empty rejects them"`
	RedisAddr              string `default:"localhost:6379" help:"Redis server address"                                         short:"r"`
	PublishEvents          bool   `default:"false"          help:"Publish throttling events to Redis Streams"`
	DatabaseURL            string `help:"PostgreSQL URL for persisting analytics events; empty logs them instead"`
	LogFormat              string `default:"console"        help:"Log output format: console or json"`
}

// LoggerPackage provides the process logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat)
	})
}

// NewLogger builds a JSON production logger or a human readable development logger.
func NewLogger(format string) (*zap.Logger, error) {
	switch format {
	case "json":
		return zap.NewProduction()
	case "console", "":
		return zap.NewDevelopment()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// RedisConnection owns the shared Redis client and closes it on shutdown.
type RedisConnection struct {
	Client *redis.Client
}

// Shutdown closes the client.
func (r *RedisConnection) Shutdown() error {
	return r.Client.Close()
}

// RedisPackage provides the shared Redis connection.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisConnection, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		client := redis.NewClient(&redis.Options{
			Addr: opts.RedisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		// the limiter itself never needs Redis, so an unreachable server is not fatal
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable", zap.String("addr", opts.RedisAddr), zap.Error(err))
		}

		return &RedisConnection{Client: client}, nil
	})
}
