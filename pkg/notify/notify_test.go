package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/notify"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

func TestNotifierReadFlow(t *testing.T) {
	db := testutil.DB(t)
	n := notify.NewNotifier(db, zap.NewNop())
	ctx := context.Background()
	u := testutil.User(t, db, models.RoleFarmer)
	other := testutil.User(t, db, models.RoleFarmer)

	first, err := n.Notify(ctx, notify.Message{UserID: u.ID, Title: "Hi", Body: "one"})
	require.NoError(t, err)
	assert.Equal(t, notify.TypeSystem, first.Type)
	assert.False(t, first.IsRead)
	_, err = n.Notify(ctx, notify.Message{UserID: u.ID, Title: "Hi", Body: "two", Type: notify.TypeOrder})
	require.NoError(t, err)

	count, err := n.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.ErrorIs(t, n.MarkRead(ctx, other.ID, first.ID), apperr.ErrForbidden)
	require.NoError(t, n.MarkRead(ctx, u.ID, first.ID))

	unread, err := n.List(ctx, u.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "two", unread[0].Message)

	changed, err := n.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	all, err := n.List(ctx, u.ID, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = n.Notify(ctx, notify.Message{Title: "nobody"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDispatcherStoresAsynchronously(t *testing.T) {
	db := testutil.DB(t)
	d, err := notify.NewDispatcher(notify.NewNotifier(db, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)
	u := testutil.User(t, db, models.RoleAgrovet)

	for i := 0; i < 5; i++ {
		d.Send(notify.Message{UserID: u.ID, Title: "Low stock alert", Body: "x", Type: notify.TypeStock})
	}
	d.Send(notify.Message{Title: "dropped"})
	require.NoError(t, d.Flush(5*time.Second))

	assert.Equal(t, int64(5), testutil.Count(t, db, &models.Notification{}, "user_id = ?", u.ID))
	assert.Equal(t, int64(5), testutil.Count(t, db, &models.Notification{}))
	d.Stop(time.Second)
}
