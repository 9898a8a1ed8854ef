//go:build integration

package redis_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/xraph/carbon/store"
	"github.com/xraph/carbon/store/redis"
	"github.com/xraph/carbon/store/storetest"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	addr, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(addr)
	require.NoError(t, err)

	// Every subtest gets its own key space on the shared server.
	var n atomic.Int64
	storetest.Run(t, func(t *testing.T) store.Store {
		client := goredis.NewClient(opts)
		require.NoError(t, client.Ping(ctx).Err())
		prefix := "carbon-test-" + strconv.FormatInt(n.Add(1), 10) + ":"
		return redis.New(client, redis.WithPrefix(prefix))
	})
}
