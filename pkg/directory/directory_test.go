package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/directory"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/reviews"
	"github.com/evansochadeka/BenFarm/pkg/testutil"
)

func TestAgrovetsRankedByDistance(t *testing.T) {
	db := testutil.DB(t)
	rv := reviews.NewService(db, nil, zap.NewNop())
	svc := directory.NewService(db, rv)
	ctx := context.Background()

	farmer := testutil.User(t, db, models.RoleFarmer, testutil.At(-1.2921, 36.8219))
	far := testutil.User(t, db, models.RoleAgrovet, testutil.At(-4.0435, 39.6682), func(u *models.User) { u.Location = "Mombasa" })
	near := testutil.User(t, db, models.RoleAgrovet, testutil.At(-1.30, 36.82), func(u *models.User) { u.Location = "Nairobi" })
	unknown := testutil.User(t, db, models.RoleAgrovet, func(u *models.User) { u.Location = "Nakuru" })
	closed := testutil.User(t, db, models.RoleAgrovet, testutil.At(-1.29, 36.82))
	require.NoError(t, db.Model(closed).UpdateColumn("is_active", false).Error)

	testutil.Product(t, db, near.ID, 5, "10")
	testutil.Product(t, db, near.ID, 0, "10")
	_, err := rv.Create(ctx, farmer, reviews.Input{AgrovetID: near.ID, Rating: 4, Title: "Good", Content: "Helpful staff"})
	require.NoError(t, err)

	list, err := svc.Agrovets(ctx, farmer, directory.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint{near.ID, far.ID, unknown.ID}, []uint{list[0].Agrovet.ID, list[1].Agrovet.ID, list[2].Agrovet.ID})
	require.NotNil(t, list[0].DistanceKm)
	assert.Less(t, *list[0].DistanceKm, 2.0)
	require.NotNil(t, list[1].DistanceKm)
	assert.InDelta(t, 440, *list[1].DistanceKm, 10)
	assert.Nil(t, list[2].DistanceKm)
	assert.Equal(t, int64(1), list[0].Products)
	assert.Equal(t, reviews.Rating{Average: 4, Count: 1}, list[0].Rating)

	list, err = svc.Agrovets(ctx, farmer, directory.Filter{Location: "mombasa"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, far.ID, list[0].Agrovet.ID)

	list, err = svc.Agrovets(ctx, farmer, directory.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
