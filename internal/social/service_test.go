package social

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flocknet/flockmind/internal/cache"
	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
)

func newTestService(t *testing.T, withCache bool) (*gorm.DB, *Service) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{}, &models.Fellowship{}, &models.MutedUser{}, &models.BlockedUser{},
	))

	var c *cache.Cache
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		c = cache.NewFromClient(client)
		t.Cleanup(func() { c.Close() })
	}

	return gdb, NewService(db.NewRepository(gdb), c, zap.NewNop())
}

func createUser(t *testing.T, gdb *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

func reload(t *testing.T, gdb *gorm.DB, id int64) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, gdb.First(&u, id).Error)
	return &u
}

func TestFollow_TogglesAndCounts(t *testing.T) {
	gdb, svc := newTestService(t, false)
	ctx := context.Background()
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	active, msg, err := svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, active)
	require.Contains(t, msg, "added to")

	require.EqualValues(t, 1, reload(t, gdb, bob.ID).FollowersCount)
	require.EqualValues(t, 1, reload(t, gdb, alice.ID).FollowingCount)

	following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, following)

	// Direction matters.
	following, err = svc.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, following)

	// Toggle off restores counters.
	active, msg, err = svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, active)
	require.Contains(t, msg, "removed from")

	require.EqualValues(t, 0, reload(t, gdb, bob.ID).FollowersCount)
	require.EqualValues(t, 0, reload(t, gdb, alice.ID).FollowingCount)
}

func TestRelations_SelfAndMissingTargets(t *testing.T) {
	gdb, svc := newTestService(t, false)
	ctx := context.Background()
	alice := createUser(t, gdb, "alice")

	_, _, err := svc.Follow(ctx, alice.ID, alice.ID)
	require.True(t, errs.IsValidation(err))

	_, _, err = svc.Mute(ctx, alice.ID, alice.ID)
	require.True(t, errs.IsValidation(err))

	_, _, err = svc.Block(ctx, alice.ID, 9999)
	require.True(t, errs.IsNotFound(err))
}

func TestMuteAndBlock_Toggle(t *testing.T) {
	gdb, svc := newTestService(t, false)
	ctx := context.Background()
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	active, _, err := svc.Mute(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, active)

	muted, err := svc.IsMuted(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, muted)

	active, _, err = svc.Block(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, active)

	blocked, err := svc.IsBlocked(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, blocked)

	// Blocking does not imply muting in reverse and vice versa.
	blocked, err = svc.IsBlocked(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestIsFollowing_ZeroActor(t *testing.T) {
	_, svc := newTestService(t, false)

	following, err := svc.IsFollowing(context.Background(), 0, 1)
	require.NoError(t, err)
	require.False(t, following)
}

func TestCachedReads_InvalidatedByToggle(t *testing.T) {
	gdb, svc := newTestService(t, true)
	ctx := context.Background()
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")

	// Prime the cache with the negative answer.
	following, err := svc.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.False(t, following)

	// The toggle must invalidate so the next read sees the edge.
	_, _, err = svc.Follow(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	following, err = svc.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, following)

	// Cached positive answer survives a direct table wipe, proving the
	// second read came from the cache.
	require.NoError(t, gdb.Where("1 = 1").Delete(&models.Fellowship{}).Error)
	following, err = svc.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.True(t, following)
}

func TestFollowers_Listing(t *testing.T) {
	gdb, svc := newTestService(t, false)
	ctx := context.Background()
	alice := createUser(t, gdb, "alice")
	bob := createUser(t, gdb, "bob")
	carol := createUser(t, gdb, "carol")

	_, _, err := svc.Follow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	_, _, err = svc.Follow(ctx, bob.ID, carol.ID)
	require.NoError(t, err)

	followers, err := svc.Followers(ctx, carol.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{alice.ID, bob.ID}, followers)

	following, err := svc.Following(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{carol.ID}, following)
}
