package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/autobid/auction-api/internal/metrics"
	apperrors "github.com/autobid/auction-api/pkg/errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyMiddleware replays the stored response of a POST that is
// retried with the same Idempotency-Key. Requests without the header pass
// through untouched.
type IdempotencyMiddleware struct {
	redis  redis.UniversalClient
	logger *logrus.Logger
	ttl    time.Duration
}

type IdempotencyRecord struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	CreatedAt  time.Time         `json:"created_at"`
}

func NewIdempotencyMiddleware(redisClient redis.UniversalClient, logger *logrus.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		redis:  redisClient,
		logger: logger,
		ttl:    5 * time.Minute,
	}
}

func (i *IdempotencyMiddleware) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}
		idempotencyKey := c.Get(HeaderIdempotencyKey)
		if idempotencyKey == "" {
			return c.Next()
		}
		if _, err := uuid.Parse(idempotencyKey); err != nil {
			return WriteError(c, apperrors.NewAppError(apperrors.CodeBadRequest, "Idempotency-Key must be a valid UUID", err))
		}

		ctx := c.Context()
		redisKey := "idempotency:" + idempotencyKey
		fingerprint := i.fingerprint(c)

		record, err := i.getRecord(ctx, redisKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			i.logger.WithError(err).Warn("Failed to get idempotency record")
			return c.Next()
		}
		if record != nil {
			stored, err := i.redis.Get(ctx, redisKey+":fingerprint").Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				i.logger.WithError(err).Warn("Failed to get idempotency fingerprint")
			}
			if stored != "" && stored != fingerprint {
				metrics.RecordIdempotencyHit("conflict")
				return WriteError(c, apperrors.NewAppError(apperrors.CodeIdempotencyConflict,
					"Request body differs from original request with same Idempotency-Key", nil))
			}
			metrics.RecordIdempotencyHit("hit")
			return i.replay(c, record)
		}

		claimed, err := i.redis.SetNX(ctx, redisKey+":fingerprint", fingerprint, i.ttl).Result()
		if err != nil {
			i.logger.WithError(err).Warn("Failed to store idempotency fingerprint")
			return c.Next()
		}
		if !claimed {
			metrics.RecordIdempotencyHit("in_flight")
			return WriteError(c, apperrors.NewAppError(apperrors.CodeIdempotencyConflict,
				"A request with this Idempotency-Key is already in progress", nil))
		}
		metrics.RecordIdempotencyHit("miss")

		handlerErr := c.Next()

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			i.store(c, redisKey, status)
		} else if err := i.redis.Del(context.Background(), redisKey+":fingerprint").Err(); err != nil {
			i.logger.WithError(err).Warn("Failed to release idempotency fingerprint")
		}
		return handlerErr
	}
}

func (i *IdempotencyMiddleware) store(c *fiber.Ctx, redisKey string, status int) {
	record := IdempotencyRecord{
		StatusCode: status,
		Headers:    make(map[string]string),
		Body:       string(c.Response().Body()),
		CreatedAt:  time.Now().UTC(),
	}
	c.Response().Header.VisitAll(func(key, value []byte) {
		if cacheableHeader(string(key)) {
			record.Headers[string(key)] = string(value)
		}
	})

	data, err := json.Marshal(&record)
	if err == nil {
		err = i.redis.Set(context.Background(), redisKey, data, i.ttl).Err()
	}
	if err != nil {
		i.logger.WithError(err).WithField("redis_key", redisKey).Warn("Failed to store idempotency record")
		return
	}
	i.logger.WithFields(logrus.Fields{
		"redis_key":   redisKey,
		"status_code": status,
	}).Debug("Stored idempotency record")
}

func (i *IdempotencyMiddleware) fingerprint(c *fiber.Ctx) string {
	h := sha256.New()
	h.Write([]byte(c.Method()))
	h.Write([]byte(":"))
	h.Write([]byte(c.Path()))
	h.Write([]byte(":"))
	h.Write(c.Request().URI().QueryString())
	h.Write([]byte(":"))
	h.Write(c.Body())
	h.Write([]byte(":"))
	if userID, ok := CallerID(c); ok {
		h.Write([]byte(strconv.FormatUint(uint64(userID), 10)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (i *IdempotencyMiddleware) getRecord(ctx context.Context, key string) (*IdempotencyRecord, error) {
	data, err := i.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var record IdempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &record, nil
}

func (i *IdempotencyMiddleware) replay(c *fiber.Ctx, record *IdempotencyRecord) error {
	for key, value := range record.Headers {
		c.Set(key, value)
	}
	c.Set("X-Idempotency-Cached", "true")
	return c.Status(record.StatusCode).SendString(record.Body)
}

func cacheableHeader(header string) bool {
	switch strings.ToLower(header) {
	case "content-type", "location", "x-request-id":
		return true
	}
	return false
}
