package config

// Redis backs the distributed rate limiter and the availability cache.  If
// it cannot be reached at startup, NewRedisClient returns nil and callers
// degrade gracefully: the cache is disabled and rate limiting falls back to
// an in-process limiter.

import (
    "context"
    "crypto/tls"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig is read from:
//   REDIS_ADDR – host:port (REDIS_HOST and REDIS_PORT take precedence when both set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when true
//   REDIS_ENABLED – set to false to run without Redis
type RedisConfig struct {
    Enabled  bool
    Addr     string
    Password string
    DB       int
    TLS      bool
}

func LoadRedisConfig() RedisConfig {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Enabled:  envBool("REDIS_ENABLED", true),
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
    }
}

// NewRedisClient connects and pings with a short timeout.  It returns nil
// when Redis is disabled or unreachable.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    if !cfg.Enabled {
        return nil
    }
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
