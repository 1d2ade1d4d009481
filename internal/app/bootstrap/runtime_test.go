package bootstrap

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/dedup"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, true))
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, nil, true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, nil, true))
}

func TestBuildDedupStoreBackends(t *testing.T) {
	ctx := context.Background()

	mem, err := BuildDedupStore(ctx, &appconfig.Config{DedupBackend: "memory", DedupCapacity: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, DedupBackendMemory, mem.Backend)
	assert.IsType(t, &dedup.MemoryStore{}, mem.Store)

	mr := miniredis.RunT(t)
	rs, err := BuildDedupStore(ctx, &appconfig.Config{DedupBackend: "redis", RedisAddr: mr.Addr(), DedupCapacity: 5}, nil)
	require.NoError(t, err)
	defer rs.Close()
	assert.Equal(t, DedupBackendRedis, rs.Backend)

	seen, _, err := rs.Store.Track(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, seen)
	require.NoError(t, rs.Store.Record(ctx, "abc", json.RawMessage(`{}`)))
	assert.True(t, mr.Exists("clinic:dedup:sig:abc"))

	_, err = BuildDedupStore(ctx, &appconfig.Config{DedupBackend: "postgres"}, nil)
	assert.Error(t, err, "postgres backend requires DATABASE_URL")

	_, err = BuildDedupStore(ctx, &appconfig.Config{DedupBackend: "etcd"}, nil)
	assert.Error(t, err)
}

func TestBuildDedupStoreRedisFallsBackToMemory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	store, err := BuildDedupStore(context.Background(), &appconfig.Config{DedupBackend: "redis", RedisAddr: addr}, nil)
	require.NoError(t, err)
	assert.Equal(t, DedupBackendMemory, store.Backend)
}
