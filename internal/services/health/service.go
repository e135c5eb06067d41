package health

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkTimeout = 2 * time.Second

// Service encapsulates dependency health checks.
type Service struct {
	DB    *sql.DB
	Redis *redis.Client
}

// NewService constructs a health service. Either dependency may be nil; a nil
// dependency reports "disabled" rather than failing the check.
func NewService(db *sql.DB, redisClient *redis.Client) *Service {
	return &Service{DB: db, Redis: redisClient}
}

// Status reports overall health plus a per-dependency breakdown.
func (s *Service) Status(ctx context.Context) map[string]any {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	ok := true

	database := "disabled"
	if s.DB != nil {
		database = "ok"
		if err := s.DB.PingContext(ctx); err != nil {
			database = "down"
			ok = false
		}
	}

	queue := "disabled"
	if s.Redis != nil {
		queue = "ok"
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			queue = "down"
			ok = false
		}
	}

	return map[string]any{
		"ok":       ok,
		"database": database,
		"queue":    queue,
	}
}
