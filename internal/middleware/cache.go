package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/dock-slot-reservation/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}
func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }
func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        remain := cw.limit - cw.size
        if cw.limit <= 0 {
            cw.buf.Write(b)
        } else if remain > 0 {
            if int64(len(b)) <= remain {
                cw.buf.Write(b)
            } else {
                cw.buf.Write(b[:remain])
            }
        }
        cw.size += int64(len(b))
    }
    return cw.ResponseWriter.Write(b)
}

// CacheGeneration versions every cached response.  Writes bump the
// counter, which moves all readers to fresh keys at once; stale entries age
// out through their TTL.
type CacheGeneration struct {
    rdb *redis.Client
    key string
}

// NewCacheGeneration returns nil when rdb is nil.
func NewCacheGeneration(cfg config.CacheConfig, rdb *redis.Client) *CacheGeneration {
    if rdb == nil {
        return nil
    }
    return &CacheGeneration{rdb: rdb, key: cfg.Prefix + ":gen"}
}

// Invalidate drops every cached response.
func (g *CacheGeneration) Invalidate(ctx context.Context) error {
    if g == nil {
        return nil
    }
    return g.rdb.Incr(ctx, g.key).Err()
}

// Current returns the generation readers should key on.
func (g *CacheGeneration) Current(ctx context.Context) (int64, error) {
    n, err := g.rdb.Get(ctx, g.key).Int64()
    if errors.Is(err, redis.Nil) {
        return 0, nil
    }
    return n, err
}

// cacheKeyFrom hashes the concrete request path and query, so /slots/a and
// /slots/b never share an entry even though they match the same route.
func cacheKeyFrom(prefix string, gen int64, r *http.Request) string {
    tail := r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%d:%x", prefix, gen, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    total := 4 + 4 + len(hdrJSON) + len(body)
    out := make([]byte, total)
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if 8+hlen > len(bs) || hlen < 0 {
        return 0, nil, nil, false
    }
    var hdr http.Header
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
            return 0, nil, nil, false
        }
    } else {
        hdr = make(http.Header)
    }
    body = bs[8+hlen:]
    return status, hdr, body, true
}

// NewRedisCache caches successful responses of the wrapped routes in
// Redis, headers included, under the current generation.  Without Redis
// the middleware is a no-op.
func NewRedisCache(cfg config.CacheConfig, gen *CacheGeneration) echo.MiddlewareFunc {
    if !cfg.Enabled || gen == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    rdb := gen.rdb
    ttl := cfg.TTL
    if ttl <= 0 { ttl = 30 * time.Second }

    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }

            ctx := c.Request().Context()
            g, err := gen.Current(ctx)
            if err != nil {
                c.Response().Header().Set("X-Cache", "BYPASS")
                return next(c)
            }
            key := cacheKeyFrom(cfg.Prefix, g, c.Request())

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        // Echo sets Content-Length itself.
                        if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, "X-Cache") { continue }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            // Miss: capture
            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            // Oversized bodies were truncated by captureWriter and are not stored.
            if cw.status == http.StatusOK && (maxBody <= 0 || cw.size <= maxBody) {
                hdr := make(http.Header, len(c.Response().Header()))
                for k, vals := range c.Response().Header() {
                    vv := make([]string, len(vals))
                    copy(vv, vals)
                    hdr[k] = vv
                }
                if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                    _ = rdb.Set(context.WithoutCancel(ctx), key, payload, ttl).Err()
                }
            }
            return nil
        }
    }
}
