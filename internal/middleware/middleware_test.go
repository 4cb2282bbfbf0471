package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dock-slot-reservation/internal/config"
    "github.com/iliyamo/dock-slot-reservation/internal/utils"
)

func newAuthedEcho(secret string, mws ...echo.MiddlewareFunc) *echo.Echo {
    e := echo.New()
    chain := append([]echo.MiddlewareFunc{JWTAuth(secret)}, mws...)
    e.GET("/whoami", func(c echo.Context) error {
        id, ok := UserID(c)
        if !ok {
            return c.String(http.StatusInternalServerError, "no id")
        }
        return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
    }, chain...)
    return e
}

func doGet(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, path, nil)
    if token != "" {
        req.Header.Set("Authorization", "Bearer "+token)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuth(t *testing.T) {
    e := newAuthedEcho("secret")
    tok, err := utils.NewAccessToken("secret", 12, "client", 5)
    if err != nil {
        t.Fatal(err)
    }

    rec := doGet(e, "/whoami", tok.Token)
    if rec.Code != http.StatusOK {
        t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
    }
    if !strings.Contains(rec.Body.String(), `"id":12`) || !strings.Contains(rec.Body.String(), `"role":"client"`) {
        t.Fatalf("body = %s", rec.Body)
    }

    if rec := doGet(e, "/whoami", ""); rec.Code != http.StatusUnauthorized {
        t.Fatalf("missing token status = %d", rec.Code)
    }
    bad, _ := utils.NewAccessToken("other", 12, "client", 5)
    if rec := doGet(e, "/whoami", bad.Token); rec.Code != http.StatusUnauthorized {
        t.Fatalf("bad token status = %d", rec.Code)
    }
}

func TestRequireRole(t *testing.T) {
    e := newAuthedEcho("secret", RequireRole("admin", "operator"))
    admin, _ := utils.NewAccessToken("secret", 1, "admin", 5)
    client, _ := utils.NewAccessToken("secret", 2, "client", 5)

    if rec := doGet(e, "/whoami", admin.Token); rec.Code != http.StatusOK {
        t.Fatalf("admin status = %d", rec.Code)
    }
    if rec := doGet(e, "/whoami", client.Token); rec.Code != http.StatusForbidden {
        t.Fatalf("client status = %d", rec.Code)
    }
}

func TestTokenBucket_LocalFallback(t *testing.T) {
    cfg := config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Hour,
        TTL:            time.Hour,
        KeyStrategy:    "ip",
        Prefix:         "rl",
    }
    e := echo.New()
    e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") }, NewTokenBucket(cfg, nil))

    for i := 0; i < 2; i++ {
        if rec := doGet(e, "/ping", ""); rec.Code != http.StatusOK {
            t.Fatalf("request %d status = %d", i+1, rec.Code)
        }
    }
    rec := doGet(e, "/ping", "")
    if rec.Code != http.StatusTooManyRequests {
        t.Fatalf("third request status = %d", rec.Code)
    }
    if rec.Header().Get("Retry-After") == "" {
        t.Fatal("missing Retry-After")
    }
}

func TestTokenBucket_Disabled(t *testing.T) {
    e := echo.New()
    e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") },
        NewTokenBucket(config.RateLimitConfig{Enabled: false, Capacity: 1}, nil))
    for i := 0; i < 5; i++ {
        if rec := doGet(e, "/ping", ""); rec.Code != http.StatusOK {
            t.Fatalf("status = %d", rec.Code)
        }
    }
}

func TestCacheKeyFrom_DistinguishesPaths(t *testing.T) {
    a := httptest.NewRequest(http.MethodGet, "/v1/slots/2024-06-03", nil)
    b := httptest.NewRequest(http.MethodGet, "/v1/slots/2024-06-04", nil)
    if cacheKeyFrom("slots", 0, a) == cacheKeyFrom("slots", 0, b) {
        t.Fatal("different dates share a cache key")
    }
    if cacheKeyFrom("slots", 0, a) == cacheKeyFrom("slots", 1, a) {
        t.Fatal("generation is not part of the key")
    }
    if !strings.HasPrefix(cacheKeyFrom("slots", 3, a), "slots:3:") {
        t.Fatalf("key = %s", cacheKeyFrom("slots", 3, a))
    }
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": []string{"application/json"}}
    bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"availableSlots":[]}`))
    if err != nil {
        t.Fatal(err)
    }
    status, got, body, ok := decodePayload(bs)
    if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"availableSlots":[]}` {
        t.Fatalf("decode = %d %v %q %v", status, got, body, ok)
    }
    if _, _, _, ok := decodePayload([]byte{0, 1}); ok {
        t.Fatal("short payload decoded")
    }
}

func TestRedisCache_NoRedisIsPassThrough(t *testing.T) {
    e := echo.New()
    calls := 0
    e.GET("/v1/slots/:date", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "ok")
    }, NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, NewCacheGeneration(config.CacheConfig{}, nil)))
    doGet(e, "/v1/slots/2024-06-03", "")
    doGet(e, "/v1/slots/2024-06-03", "")
    if calls != 2 {
        t.Fatalf("handler calls = %d, want 2", calls)
    }
    var g *CacheGeneration
    if err := g.Invalidate(context.Background()); err != nil {
        t.Fatalf("nil generation Invalidate: %v", err)
    }
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/slots/2030-01-07", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/slots/:date")
    c.Set(ctxUserID, uint64(9))

    cases := map[string]string{
        "ip":            "rl:ip:10.0.0.1",
        "user_route":    "rl:user:9:route:GET /v1/slots/:date",
        "ip_user":       "rl:ip:10.0.0.1:user:9",
        "":              "rl:ip:10.0.0.1:user:9:route:GET /v1/slots/:date",
        "nonsense":      "rl:ip:10.0.0.1:user:9:route:GET /v1/slots/:date",
        "ip_user_route": "rl:ip:10.0.0.1:user:9:route:GET /v1/slots/:date",
    }
    for strategy, want := range cases {
        got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
        if got != want {
            t.Errorf("strategy %q: key = %q, want %q", strategy, got, want)
        }
    }
}
