package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
)

func newTestRepo(t *testing.T) (*gorm.DB, *db.Repository) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{}, &models.Notification{}, &models.MutedUser{},
	))
	return gdb, db.NewRepository(gdb)
}

func notifCount(t *testing.T, gdb *gorm.DB, recipientID int64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, gdb.Model(&models.Notification{}).
		Where("performed_on_id = ?", recipientID).
		Count(&count).Error)
	return count
}

func TestNotifier_Toggle(t *testing.T) {
	gdb, repo := newTestRepo(t)
	n := NewNotifier(repo, zap.NewNop())
	ctx := context.Background()
	subject := models.TweetRef(42)

	// First trigger creates.
	created, err := n.Notify(ctx, 1, 2, models.NotifyGroupTwitter, models.NotifyTypeLike, subject)
	require.NoError(t, err)
	require.True(t, created)
	require.EqualValues(t, 1, notifCount(t, gdb, 2))

	// Identical trigger removes.
	created, err = n.Notify(ctx, 1, 2, models.NotifyGroupTwitter, models.NotifyTypeLike, subject)
	require.NoError(t, err)
	require.False(t, created)
	require.EqualValues(t, 0, notifCount(t, gdb, 2))

	// Differing subject is a distinct trigger.
	created, err = n.Notify(ctx, 1, 2, models.NotifyGroupTwitter, models.NotifyTypeLike, models.TweetRef(43))
	require.NoError(t, err)
	require.True(t, created)
	created, err = n.Notify(ctx, 1, 2, models.NotifyGroupTwitter, models.NotifyTypeRetweet, models.TweetRef(43))
	require.NoError(t, err)
	require.True(t, created)
	require.EqualValues(t, 2, notifCount(t, gdb, 2))
}

func TestNotifier_ReadSide(t *testing.T) {
	_, repo := newTestRepo(t)
	n := NewNotifier(repo, zap.NewNop())
	ctx := context.Background()

	_, err := n.Notify(ctx, 1, 2, models.NotifyGroupTwitter, models.NotifyTypeLike, models.TweetRef(1))
	require.NoError(t, err)
	_, err = n.Notify(ctx, 1, 2, models.NotifyGroupTwitter, models.NotifyTypeLike, models.TweetRef(2))
	require.NoError(t, err)

	notifs, err := n.List(ctx, 2, models.NotifyGroupTwitter, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, notifs, 2)

	unread, err := n.CountUnread(ctx, 2, models.NotifyGroupTwitter, time.Time{})
	require.NoError(t, err)
	require.EqualValues(t, 2, unread)

	require.NoError(t, n.MarkRead(ctx, notifs[0].ID, 2))

	unread, err = n.CountUnread(ctx, 2, models.NotifyGroupTwitter, time.Time{})
	require.NoError(t, err)
	require.EqualValues(t, 1, unread)

	// Already read.
	err = n.MarkRead(ctx, notifs[0].ID, 2)
	require.True(t, errs.IsNotFound(err))

	// Foreign recipient.
	err = n.MarkRead(ctx, notifs[1].ID, 99)
	require.True(t, errs.IsNotFound(err))
}

func newTestDispatcher(repo *db.Repository) *Dispatcher {
	return NewDispatcher(repo, DispatcherOptions{
		Workers:     1,
		QueueSize:   16,
		MaxAttempts: 2,
		RetryBase:   time.Millisecond,
	}, zap.NewNop())
}

func TestDispatcher_DeliversAndSuppresses(t *testing.T) {
	gdb, repo := newTestRepo(t)
	d := newTestDispatcher(repo)
	d.Start(context.Background())

	// Recipient 5 muted actor 9.
	require.NoError(t, gdb.Create(&models.MutedUser{
		MuterID: 5, MutedID: 9, CreatedAt: time.Now().UTC(),
	}).Error)

	d.Dispatch(models.TweetRef(1), 5, 7, models.NotifyTypeLike, nil)  // delivered
	d.Dispatch(models.TweetRef(1), 5, 5, models.NotifyTypeLike, nil)  // self, suppressed
	d.Dispatch(models.TweetRef(1), 5, 9, models.NotifyTypeLike, nil)  // muted, suppressed
	d.Dispatch(models.TweetRef(2), 5, 7, models.NotifyTypeRetweet, nil)
	d.Stop()

	require.EqualValues(t, 2, notifCount(t, gdb, 5))
}

func TestDispatcher_DuplicateTasksEachWriteARow(t *testing.T) {
	gdb, repo := newTestRepo(t)
	d := newTestDispatcher(repo)
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		d.Dispatch(models.TweetRef(1), 5, 7, models.NotifyTypeLike, nil)
	}
	d.Stop()

	// Unlike the toggle path, the async path never dedups.
	require.EqualValues(t, 3, notifCount(t, gdb, 5))
}

func TestDispatcher_DropsAfterRetryBudget(t *testing.T) {
	gdb, repo := newTestRepo(t)
	d := newTestDispatcher(repo)
	d.Start(context.Background())

	// Breaking the table makes every delivery attempt fail; the task
	// must be dropped without blocking Stop.
	require.NoError(t, gdb.Migrator().DropTable(&models.Notification{}))

	d.Dispatch(models.TweetRef(1), 5, 7, models.NotifyTypeLike, nil)
	d.Stop()

	require.NoError(t, gdb.AutoMigrate(&models.Notification{}))
	require.EqualValues(t, 0, notifCount(t, gdb, 5))
}

func TestDispatcher_StopConcurrentWithDispatch(t *testing.T) {
	_, repo := newTestRepo(t)
	d := newTestDispatcher(repo)
	d.Start(context.Background())

	// Hammer Dispatch from several goroutines while Stop closes the
	// queue. Dispatches landing after the close are dropped silently;
	// none may panic on the closed channel.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.Dispatch(models.TweetRef(int64(i)), 5, actor, models.NotifyTypeLike, nil)
			}
		}(int64(10 + g))
	}
	d.Stop()
	wg.Wait()

	// Stop is idempotent.
	d.Stop()
}

func TestRedisQueue_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := NewRedisQueue(client)
	ctx := context.Background()

	parentID := int64(77)
	task := Task{
		Subject:     models.TweetRef(12),
		RecipientID: 5,
		ActorID:     7,
		Type:        models.NotifyTypeMention,
		ParentID:    &parentID,
		EnqueuedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, q.Push(ctx, task))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, task.Subject, got.Subject)
	require.Equal(t, task.RecipientID, got.RecipientID)
	require.Equal(t, task.Type, got.Type)
	require.NotNil(t, got.ParentID)
	require.EqualValues(t, 77, *got.ParentID)
}

func TestDispatcher_RemoteQueueRouting(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	_, repo := newTestRepo(t)
	q := NewRedisQueue(client)
	d := newTestDispatcher(repo).WithRemoteQueue(q)

	d.Dispatch(models.TweetRef(1), 5, 7, models.NotifyTypeLike, nil)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}
