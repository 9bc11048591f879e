package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeList implements the list commands Push issues. Any other command
// panics through the nil embedded interface.
type fakeList struct {
	goredis.Cmdable
	values []interface{}
	trims  [][2]int64
	err    error
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd {
	f.values = append(f.values, values...)
	return goredis.NewIntResult(int64(len(f.values)), f.err)
}

func (f *fakeList) TxPipelined(ctx context.Context, fn func(goredis.Pipeliner) error) ([]goredis.Cmder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, fn(&fakePipeline{list: f})
}

type fakePipeline struct {
	goredis.Pipeliner
	list *fakeList
}

func (p *fakePipeline) RPush(ctx context.Context, key string, values ...interface{}) *goredis.IntCmd {
	return p.list.RPush(ctx, key, values...)
}

func (p *fakePipeline) LTrim(ctx context.Context, key string, start, stop int64) *goredis.StatusCmd {
	p.list.trims = append(p.list.trims, [2]int64{start, stop})
	if n := int64(len(p.list.values)); n > -start {
		p.list.values = p.list.values[n+start:]
	}
	return goredis.NewStatusResult("OK", nil)
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "redis://localhost:6379/0"})
	assert.ErrorContains(t, err, "redis key is empty")

	_, err = Open(context.Background(), Config{URL: "localhost:6379", Key: "autoprobe:reports"})
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestOpenUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, Config{URL: "redis://127.0.0.1:1/0", Key: "autoprobe:reports"})
	assert.ErrorContains(t, err, "failed to connect to redis at 127.0.0.1:1")
}

func TestPushUncapped(t *testing.T) {
	f := &fakeList{}
	l := newReportList(f, func() error { return nil }, Config{Key: "autoprobe:reports"})

	for i := 1; i <= 3; i++ {
		n, err := l.Push(context.Background(), []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
	}
	assert.Empty(t, f.trims)
	assert.Equal(t, "autoprobe:reports", l.Key())
}

func TestPushKeepsNewestReports(t *testing.T) {
	f := &fakeList{}
	l := newReportList(f, func() error { return nil }, Config{Key: "autoprobe:reports", MaxReports: 2})

	for _, report := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		_, err := l.Push(context.Background(), []byte(report))
		require.NoError(t, err)
	}
	n, err := l.Push(context.Background(), []byte(`{"n":4}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []interface{}{[]byte(`{"n":3}`), []byte(`{"n":4}`)}, f.values)
	assert.Equal(t, [2]int64{-2, -1}, f.trims[0])
}

func TestPushError(t *testing.T) {
	closed := false
	f := &fakeList{err: errors.New("connection refused")}
	l := newReportList(f, func() error { closed = true; return nil }, Config{Key: "k", MaxReports: 5})

	_, err := l.Push(context.Background(), []byte(`{}`))
	assert.EqualError(t, err, "connection refused")

	l.max = 0
	_, err = l.Push(context.Background(), []byte(`{}`))
	assert.EqualError(t, err, "connection refused")

	require.NoError(t, l.Close())
	assert.True(t, closed)
}
