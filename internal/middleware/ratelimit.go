package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/iliyamo/dock-slot-reservation/internal/config"
)

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits requests per key (see buildRateKey).  Buckets live
// in Redis so that every replica shares them; without Redis, or when a
// script call fails, an in-process x/time/rate limiter with the same
// capacity and refill rate takes over.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    local := newLocalLimiter(cfg.PerSecond(), cfg.Capacity, cfg.TTL)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)

            var (
                allowed   bool
                remaining int64
                retryMs   int64
                ok        bool
            )
            if rdb != nil {
                allowed, remaining, retryMs, ok = redisTake(c, cfg, rdb, key)
            }
            if !ok {
                allowed, remaining, retryMs = local.take(key)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

            if !allowed {
                secs := max(int(math.Ceil(float64(retryMs)/1000.0)), 1)
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    c.Logger().Infof("[ratelimit] block key=%s remaining=%d retry=%dms", key, remaining, retryMs)
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":      "rate limit exceeded",
                    "code":       "too_many_requests",
                    "retryAfter": secs,
                })
            }

            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

// redisTake runs the bucket script.  ok is false when Redis could not
// answer and the caller should decide locally.
func redisTake(c echo.Context, cfg config.RateLimitConfig, rdb *redis.Client, key string) (allowed bool, remaining, retryMs int64, ok bool) {
    args := []interface{}{
        time.Now().UnixMilli(),
        cfg.Capacity,
        cfg.RefillTokens,
        cfg.RefillInterval.Milliseconds(),
        int64(cfg.TTL / time.Second),
    }
    vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key}, args...).Result()
    if err != nil {
        if cfg.Debug {
            c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
        }
        return false, 0, 0, false
    }
    arr, isArr := vals.([]interface{})
    if !isArr || len(arr) != 3 {
        if cfg.Debug {
            c.Logger().Warnf("[ratelimit] unexpected script result for key=%s: %#v", key, vals)
        }
        return false, 0, 0, false
    }
    return fmt.Sprint(arr[0]) == "1", asInt64(arr[1]), asInt64(arr[2]), true
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case string:
        n, _ := strconv.ParseInt(t, 10, 64)
        return n
    }
    return 0
}

// buildRateKey composes the bucket key from the parts named in
// cfg.KeyStrategy, joined by "_" (e.g. "ip_user_route").  Unknown or empty
// strategies key on all three.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    values := map[string]string{
        "ip":    ip,
        "user":  identityKey(c),
        "route": c.Request().Method + " " + c.Path(),
    }

    parts := []string{cfg.Prefix}
    for _, part := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
        if v, ok := values[part]; ok {
            parts = append(parts, part, v)
        }
    }
    if len(parts) == 1 {
        parts = append(parts, "ip", values["ip"], "user", values["user"], "route", values["route"])
    }
    return strings.Join(parts, ":")
}

// localLimiter keeps one x/time/rate limiter per key and forgets keys that
// stay idle for longer than idleTTL.
type localLimiter struct {
    mu        sync.Mutex
    entries   map[string]*localEntry
    rps       rate.Limit
    burst     int
    idleTTL   time.Duration
    lastSweep time.Time
}

type localEntry struct {
    lim      *rate.Limiter
    lastSeen time.Time
}

func newLocalLimiter(rps float64, burst int, idleTTL time.Duration) *localLimiter {
    return &localLimiter{
        entries: make(map[string]*localEntry),
        rps:     rate.Limit(rps),
        burst:   burst,
        idleTTL: idleTTL,
    }
}

func (l *localLimiter) take(key string) (allowed bool, remaining, retryMs int64) {
    now := time.Now()

    l.mu.Lock()
    if now.Sub(l.lastSweep) > l.idleTTL {
        for k, ent := range l.entries {
            if now.Sub(ent.lastSeen) > l.idleTTL {
                delete(l.entries, k)
            }
        }
        l.lastSweep = now
    }
    ent, ok := l.entries[key]
    if !ok {
        ent = &localEntry{lim: rate.NewLimiter(l.rps, l.burst)}
        l.entries[key] = ent
    }
    ent.lastSeen = now
    l.mu.Unlock()

    r := ent.lim.ReserveN(now, 1)
    if !r.OK() {
        return false, 0, 1000
    }
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return false, 0, d.Milliseconds()
    }
    return true, int64(ent.lim.TokensAt(now)), 0
}
