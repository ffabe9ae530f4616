package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// stubClient implements redisClient for testing.
type stubClient struct {
	pingErr error
	list    []string
	pops    int
	closed  bool
}

func (s *stubClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", s.pingErr)
}

func (s *stubClient) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			s.list = append([]string{string(b)}, s.list...)
		case string:
			s.list = append([]string{b}, s.list...)
		}
	}
	return redis.NewIntResult(int64(len(s.list)), nil)
}

// BRPop times out once before answering so callers must keep polling.
func (s *stubClient) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	s.pops++
	if s.pops == 1 || len(s.list) == 0 {
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
	last := s.list[len(s.list)-1]
	s.list = s.list[:len(s.list)-1]
	return redis.NewStringSliceResult([]string{keys[0], last}, nil)
}

func (s *stubClient) Close() error {
	s.closed = true
	return nil
}

func withStub(t *testing.T, stub *stubClient) *redis.Options {
	var opts redis.Options
	redisNewClient = func(o *redis.Options) redisClient {
		opts = *o
		return stub
	}
	t.Cleanup(func() {
		redisNewClient = func(o *redis.Options) redisClient { return redis.NewClient(o) }
	})
	return &opts
}

func TestNewRedisQueue(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		stub := &stubClient{}
		opts := withStub(t, stub)

		q, err := NewRedisQueue(context.Background(), "127.0.0.1:6379", "secret", 1, "leaf:tasks")
		require.NoError(t, err)
		require.Equal(t, "leaf:tasks", q.key)
		require.Equal(t, "127.0.0.1:6379", opts.Addr)
		require.Equal(t, "secret", opts.Password)
		require.Equal(t, 1, opts.DB)
	})

	t.Run("ping fail", func(t *testing.T) {
		stub := &stubClient{pingErr: errors.New("fail")}
		withStub(t, stub)

		q, err := NewRedisQueue(context.Background(), "addr", "", 0, "k")
		require.Error(t, err)
		require.Nil(t, q)
		require.True(t, stub.closed)
	})
}

func TestRedisQueueRoundTrip(t *testing.T) {
	stub := &stubClient{}
	withStub(t, stub)
	ctx := context.Background()

	q, err := NewRedisQueue(ctx, "addr", "", 0, "leaf:tasks")
	require.NoError(t, err)

	first, err := NewTask(TaskSendMail, SendMailPayload{To: "a@x.it", Message: "m1"})
	require.NoError(t, err)
	second, err := NewTask(TaskSendMail, SendMailPayload{To: "b@x.it", Message: "m2"})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	var stored Task
	require.NoError(t, json.Unmarshal([]byte(stub.list[1]), &stored))
	require.Equal(t, first.ID, stored.ID)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	var payload SendMailPayload
	require.NoError(t, got.Decode(&payload))
	require.Equal(t, "a@x.it", payload.To)

	require.NoError(t, q.Close())
	require.True(t, stub.closed)
}

func TestRedisQueueDequeueHonoursContext(t *testing.T) {
	stub := &stubClient{}
	withStub(t, stub)

	q, err := NewRedisQueue(context.Background(), "addr", "", 0, "k")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
