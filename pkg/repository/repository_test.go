package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/evansochadeka/BenFarm/pkg/repository"
)

func TestRedisJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	r := repository.NewRedisRepositoryFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer r.Close()
	ctx := context.Background()
	require.NoError(t, r.Ping(ctx))

	type entry struct {
		Name string `json:"name"`
		Qty  int    `json:"qty"`
	}
	var got entry
	assert.ErrorIs(t, r.GetJSON(ctx, "missing", &got), repository.ErrCacheMiss)

	require.NoError(t, r.SetJSON(ctx, "k", entry{Name: "urea", Qty: 4}, time.Minute))
	require.NoError(t, r.GetJSON(ctx, "k", &got))
	assert.Equal(t, entry{Name: "urea", Qty: 4}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, r.GetJSON(ctx, "k", &got), repository.ErrCacheMiss)

	require.NoError(t, r.Set(ctx, "plain", "v", 0))
	require.NoError(t, r.Del(ctx, "plain"))
	_, err := r.Get(ctx, "plain")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestMemoryAuditor(t *testing.T) {
	a := repository.NewMemoryAuditor()
	ctx := context.Background()
	for _, to := range []string{"in_transit", "completed"} {
		require.NoError(t, a.CreateAuditLog(ctx, &repository.AuditLog{
			Service: "orders", Action: "status_changed", EntityID: "ref-1", Data: bson.M{"to": to},
		}))
	}
	require.NoError(t, a.CreateAuditLog(ctx, &repository.AuditLog{EntityID: "ref-2"}))

	logs, err := a.GetAuditLogs(ctx, "ref-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "completed", logs[0].Data["to"])
	assert.False(t, logs[0].CreatedAt.IsZero())

	logs, err = a.GetAuditLogs(ctx, "ref-1", 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
