package summarystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/models"
)

const (
	keyPrefix = "interview:summary:"
	// DefaultTTL bounds how long an unconsumed summary waits for report generation.
	DefaultTTL = 24 * time.Hour
)

// ErrNotFound is returned when no summary is stored for the session.
var ErrNotFound = errors.New("summarystore: summary not found")

// Store holds completed session summaries in Redis between session end and
// report generation. A summary is consumed at most once; report generation
// falls back to the persisted session row if the summary has expired.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}
}

func key(sessionID string) string { return keyPrefix + sessionID }

// Put stores the summary under the session ID with the configured TTL.
func (s *Store) Put(ctx context.Context, summary *models.SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.rdb.Set(ctx, key(summary.SessionID.String()), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	s.logger.Debug("session summary stored",
		zap.String("session_id", summary.SessionID.String()),
		zap.Duration("ttl", s.ttl))
	return nil
}

// Consume atomically fetches and removes the summary for the session.
// Returns ErrNotFound when nothing is stored (already consumed or expired).
func (s *Store) Consume(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	data, err := s.rdb.GetDel(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consume summary: %w", err)
	}
	var summary models.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// Restore puts a consumed summary back, e.g. after a failed report generation,
// so the client can retry without losing the session data.
func (s *Store) Restore(ctx context.Context, summary *models.SessionSummary) error {
	return s.Put(ctx, summary)
}
