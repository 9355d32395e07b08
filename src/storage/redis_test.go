package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mxshs/oddscrawler/src/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := New(BackendRedis,
		WithRedis(mr.Addr(), "", 0),
		WithLabel("lottomatica"),
		WithClock(fixedClock),
		WithTTL(time.Hour),
	)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx))

	id := s.SessionID()
	assert.Equal(t, "lottomatica_20261019_140509_042", id)
	assert.Equal(t, "redis://"+mr.Addr()+"/odds:"+id, s.Path())
	assert.Equal(t, id, mr.HGet("odds:"+id+":meta", "session_id"))

	require.NoError(t, s.Store(ctx, newRecord(t, fixedNow, 2.10), newRecord(t, fixedNow, 2.20)))
	assert.Equal(t, "2", mr.HGet("odds:"+id+":meta", "records"))
	assert.Equal(t, time.Hour, mr.TTL("odds:"+id))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	records, err := ReadRedis(ctx, client, id)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, id, records[1].SessionID)
	v, _ := records[1].Odds(domain.Market1X2, "home")
	assert.Equal(t, 2.20, v)
	assert.NoError(t, records[0].Validate())

	require.NoError(t, s.Close())
	assert.NotEmpty(t, mr.HGet("odds:"+id+":meta", "closed_at"))
	assert.ErrorIs(t, s.Store(ctx, newRecord(t, fixedNow, 2.10)), domain.ErrNotInitialized)
}

func TestRedisStorage_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s, err := New(BackendRedis, WithRedis(addr, "", 0))
	require.NoError(t, err)

	err = s.Initialize(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.NoError(t, s.Close())
}

// failExpire rejects EXPIRE on keys with the given prefix.
type failExpire struct {
	prefix string
}

func (h failExpire) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h failExpire) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		if cmd.Name() == "expire" && len(args) > 1 {
			if key, ok := args[1].(string); ok && strings.HasPrefix(key, h.prefix) && !strings.HasSuffix(key, ":meta") {
				err := errors.New("expire rejected")
				cmd.SetErr(err)
				return err
			}
		}
		return next(ctx, cmd)
	}
}

func (h failExpire) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisStorage_ExpireFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	core, logs := observer.New(zapcore.WarnLevel)

	s, err := New(BackendRedis,
		WithRedis(mr.Addr(), "", 0),
		WithSessionID("ttl"),
		WithTTL(time.Hour),
		WithLogger(zap.New(core)),
	)
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client.AddHook(failExpire{prefix: "odds:ttl"})
	s.(*RedisStorage).client = client

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Store(ctx, newRecord(t, fixedNow, 2.10)))

	items, err := mr.List("odds:ttl")
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "1", mr.HGet("odds:ttl:meta", "records"))
	assert.Equal(t, 1, logs.FilterMessage("refresh session ttl").Len())

	require.NoError(t, s.Close())
}
