// Package redis keeps scan reports in a Redis list.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

// Config holds the configuration for the Redis report list.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Key     string `mapstructure:"key"`
	// MaxReports caps the list to the newest reports; 0 keeps everything.
	MaxReports int64 `mapstructure:"max_reports"`
}

// ReportList appends serialised reports to one Redis list.
type ReportList struct {
	rdb   goredis.Cmdable
	close func() error
	key   string
	max   int64
}

// Open connects to cfg.URL and checks the server answers a PING.
func Open(ctx context.Context, cfg Config) (*ReportList, error) {
	if cfg.Key == "" {
		return nil, errors.New("redis key is empty")
	}
	opt, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opt.Addr, err)
	}
	return newReportList(rdb, rdb.Close, cfg), nil
}

func newReportList(rdb goredis.Cmdable, close func() error, cfg Config) *ReportList {
	return &ReportList{rdb: rdb, close: close, key: cfg.Key, max: cfg.MaxReports}
}

// Key returns the name of the list.
func (l *ReportList) Key() string {
	return l.key
}

// Push appends data and returns the list length afterwards. With a cap the
// append and the trim run in one transaction.
func (l *ReportList) Push(ctx context.Context, data []byte) (int64, error) {
	if l.max <= 0 {
		return l.rdb.RPush(ctx, l.key, data).Result()
	}

	var push *goredis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		push = p.RPush(ctx, l.key, data)
		p.LTrim(ctx, l.key, -l.max, -1)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n := push.Val(); n < l.max {
		return n, nil
	}
	return l.max, nil
}

// Close releases the connection pool.
func (l *ReportList) Close() error {
	return l.close()
}
