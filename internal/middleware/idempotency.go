package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// IdempotencyKeyHeader carries the client-chosen idempotency key
	IdempotencyKeyHeader = "Idempotency-Key"
	// DefaultIdempotencyTTL is how long completed responses stay replayable
	DefaultIdempotencyTTL = 24 * time.Hour
	// provisionalLockTTL bounds how long an in-flight request holds its key
	provisionalLockTTL = 60 * time.Second
	// redisOpTimeout bounds individual Redis operations
	redisOpTimeout = 2 * time.Second
)

var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,128}$`)

// idempotencyRecord is what we persist per key in Redis
type idempotencyRecord struct {
	InProgress bool      `json:"in_progress"`
	Code       int       `json:"code"`
	Body       []byte    `json:"body"`
	BodySHA256 string    `json:"body_sha256"`
	CreatedAt  time.Time `json:"created_at"`
}

// responseRecorder captures the response so it can be replayed later
type responseRecorder struct {
	http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.code = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// IdempotencyMiddleware deduplicates mutating requests by Idempotency-Key.
// The key is scoped per subject, method and route. A repeated request with
// the same key and body replays the stored response; the same key with a
// different body is rejected. Requests without the header pass through.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration) echo.MiddlewareFunc {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			// Only mutating methods are deduplicated
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			key := strings.TrimSpace(req.Header.Get(IdempotencyKeyHeader))
			if key == "" {
				return next(c)
			}
			if !idempotencyKeyPattern.MatchString(key) {
				return badRequestError(c, "invalid Idempotency-Key format")
			}

			// Buffer and hash the body so retries can be compared
			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bodyDigest := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(bodyDigest[:])

			storeKey := idempotencyStoreKey(req.Method, c.Path(), GetSubject(c), key)

			ctx, cancel := context.WithTimeout(req.Context(), redisOpTimeout)
			defer cancel()

			record := idempotencyRecord{
				InProgress: true,
				BodySHA256: bodyHash,
				CreatedAt:  time.Now().UTC(),
			}
			payload, _ := json.Marshal(record)
			acquired, err := rdb.SetNX(ctx, storeKey, payload, provisionalLockTTL).Result()
			if err != nil {
				log.Error().Err(err).Str("key", storeKey).Msg("Idempotency store unavailable")
				return serviceUnavailableError(c, "idempotency store unavailable")
			}

			if !acquired {
				stored, err := loadIdempotencyRecord(ctx, rdb, storeKey)
				if err != nil {
					log.Warn().Err(err).Str("key", storeKey).Msg("Failed to load idempotency record")
					return conflictError(c, "request is already in progress")
				}
				if stored.BodySHA256 != "" && stored.BodySHA256 != bodyHash {
					return conflictError(c, "Idempotency-Key reused with a different body")
				}
				if !stored.InProgress && stored.Code != 0 {
					c.Response().Header().Set("Idempotency-Replayed", "true")
					return c.Blob(stored.Code, echo.MIMEApplicationJSON, stored.Body)
				}
				return conflictError(c, "request is already in progress")
			}

			// Run the handler while capturing the response
			rec := &responseRecorder{
				ResponseWriter: c.Response().Writer,
				buf:            &bytes.Buffer{},
				code:           http.StatusOK,
			}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			final := idempotencyRecord{
				Code:       rec.code,
				Body:       rec.buf.Bytes(),
				BodySHA256: bodyHash,
				CreatedAt:  time.Now().UTC(),
			}
			finalPayload, _ := json.Marshal(final)
			saveCtx, saveCancel := context.WithTimeout(context.Background(), redisOpTimeout)
			defer saveCancel()
			if err := rdb.Set(saveCtx, storeKey, finalPayload, ttl).Err(); err != nil {
				log.Warn().Err(err).Str("key", storeKey).Msg("Failed to persist idempotency record")
			}
			return nil
		}
	}
}

func idempotencyStoreKey(method, path, subject, key string) string {
	if subject == "" {
		subject = "anonymous"
	}
	return "idempotency:" + strings.ToLower(method) + ":" + path + ":" + subject + ":" + key
}

func loadIdempotencyRecord(ctx context.Context, rdb *redis.Client, key string) (idempotencyRecord, error) {
	var record idempotencyRecord
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, err
	}
	return record, nil
}
