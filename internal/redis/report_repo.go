package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReportRepository keeps a capped list of serialized reports under one key,
// newest at the head.
type ReportRepository struct {
	client redis.Cmdable
	log    *zap.Logger
	key    string
	max    int64
}

func NewReportRepository(log *zap.Logger, client redis.Cmdable, key string, max int64) *ReportRepository {
	return &ReportRepository{
		client: client,
		log:    log.Named("report_repo"),
		key:    key,
		max:    max,
	}
}

// Push prepends payload and trims the list to the configured maximum.
func (r *ReportRepository) Push(ctx context.Context, payload []byte) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.key, payload)
	pipe.LTrim(ctx, r.key, 0, r.max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lpush+ltrim: %w", err)
	}
	r.log.Debug("report pushed", zap.String("key", r.key), zap.Int("bytes", len(payload)))
	return nil
}

// Recent returns up to n payloads, newest first; n <= 0 returns all.
func (r *ReportRepository) Recent(ctx context.Context, n int64) ([][]byte, error) {
	stop := n - 1
	if n <= 0 {
		stop = -1
	}
	vals, err := r.client.LRange(ctx, r.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Len returns the number of retained payloads.
func (r *ReportRepository) Len(ctx context.Context) (int64, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen: %w", err)
	}
	return n, nil
}
