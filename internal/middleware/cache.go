package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-ticketing/internal/config"
)

var cacheKeyComponents = map[string]bool{"method": true, "route": true, "path": true, "query": true}

// cachedResponse is what NewRedisCache stores per key.
type cachedResponse struct {
	Status int         `json:"s"`
	Header http.Header `json:"h,omitempty"`
	Body   []byte      `json:"b"`
}

// teeWriter copies the response body into buf until it exceeds limit,
// after which the response is marked as not cacheable.
type teeWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (w *teeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *teeWriter) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
			w.overflow = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

func cacheKey(prefix string, components []string, c echo.Context) string {
	sum := sha256.Sum256([]byte(strings.Join(requestKey(c, components), "\x00")))
	return prefix + ":" + hex.EncodeToString(sum[:16])
}

// NewRedisCache serves repeated anonymous reads of the public catalog from
// Redis.  Only 200 responses of the configured methods are stored, for
// cfg.TTL.  Requests carrying credentials bypass the cache because the
// response may depend on the viewer.  Responses carry X-Cache HIT or MISS.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	components := keyComponents(cfg.KeyStrategy, cacheKeyComponents, []string{"route", "path", "query"})
	if !contains(components, "path") {
		// Path params are not part of the route pattern.
		components = append(components, "path")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			if !cfg.Methods[r.Method] || r.Header.Get(echo.HeaderAuthorization) != "" {
				return next(c)
			}
			ctx := r.Context()
			key := cacheKey(cfg.Prefix, components, c)

			if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(raw, &hit) == nil {
					h := c.Response().Header()
					for k, vals := range hit.Header {
						h[k] = vals
					}
					h.Set("X-Cache", "HIT")
					return c.Blob(hit.Status, h.Get(echo.HeaderContentType), hit.Body)
				}
			}

			tw := &teeWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = tw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if tw.status != http.StatusOK || tw.overflow {
				return nil
			}
			hdr := c.Response().Header().Clone()
			for _, k := range []string{"X-Cache", echo.HeaderContentLength, echo.HeaderXRequestID, "X-Ratelimit-Remaining"} {
				hdr.Del(k)
			}
			raw, err := json.Marshal(cachedResponse{Status: tw.status, Header: hdr, Body: tw.buf.Bytes()})
			if err == nil {
				_ = rdb.Set(context.WithoutCancel(ctx), key, raw, ttl).Err()
			}
			return nil
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
