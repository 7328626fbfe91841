package dm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
	"github.com/flocknet/flockmind/internal/notify"
)

type fixture struct {
	gdb  *gorm.DB
	svc  *Service
	disp *notify.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{}, &models.BlockedUser{}, &models.MutedUser{},
		&models.Message{}, &models.Conversation{}, &models.ConversationMessage{},
		&models.Notification{},
	))

	repo := db.NewRepository(gdb)
	disp := notify.NewDispatcher(repo, notify.DispatcherOptions{
		Workers:     1,
		QueueSize:   16,
		MaxAttempts: 2,
		RetryBase:   time.Millisecond,
	}, zap.NewNop())
	disp.Start(context.Background())

	return &fixture{
		gdb:  gdb,
		svc:  NewService(repo, disp, zap.NewNop()),
		disp: disp,
	}
}

func (f *fixture) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, f.gdb.Create(u).Error)
	return u
}

func TestSend_CreatesConversationAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	msg, err := f.svc.Send(ctx, alice.ID, bob.ID, "hi bob")
	require.NoError(t, err)
	require.Equal(t, "hi bob", msg.Body)
	require.False(t, msg.Seen)

	// Reply lands in the same conversation.
	_, err = f.svc.Send(ctx, bob.ID, alice.ID, "hi alice")
	require.NoError(t, err)

	var conversations int64
	require.NoError(t, f.gdb.Model(&models.Conversation{}).Count(&conversations).Error)
	require.EqualValues(t, 1, conversations)

	f.disp.Stop()
	var notifs int64
	require.NoError(t, f.gdb.Model(&models.Notification{}).
		Where("type = ?", models.NotifyTypeMessage).
		Count(&notifs).Error)
	require.EqualValues(t, 2, notifs)
}

func TestSend_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	_, err := f.svc.Send(ctx, alice.ID, bob.ID, "   ")
	require.True(t, errs.IsValidation(err))

	_, err = f.svc.Send(ctx, alice.ID, alice.ID, "me again")
	require.True(t, errs.IsValidation(err))

	_, err = f.svc.Send(ctx, alice.ID, 9999, "anyone there")
	require.True(t, errs.IsNotFound(err))
}

func TestSend_BlockedEitherDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	require.NoError(t, f.gdb.Create(&models.BlockedUser{
		BlockerID: bob.ID, BlockedID: alice.ID, CreatedAt: time.Now().UTC(),
	}).Error)

	// Blocked sender cannot write, and the blocker cannot write either.
	_, err := f.svc.Send(ctx, alice.ID, bob.ID, "let me in")
	require.True(t, errs.IsValidation(err))

	_, err = f.svc.Send(ctx, bob.ID, alice.ID, "still blocked")
	require.True(t, errs.IsValidation(err))
}

func TestMarkSeen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	msg, err := f.svc.Send(ctx, alice.ID, bob.ID, "look at this")
	require.NoError(t, err)

	// Only the recipient may mark seen.
	err = f.svc.MarkSeen(ctx, msg.ID, alice.ID)
	require.True(t, errs.IsNotFound(err))

	require.NoError(t, f.svc.MarkSeen(ctx, msg.ID, bob.ID))

	// Repeat is a no-op signalled as not found.
	err = f.svc.MarkSeen(ctx, msg.ID, bob.ID)
	require.True(t, errs.IsNotFound(err))
}

func TestMessages_ParticipantsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	carol := f.user(t, "carol")

	_, err := f.svc.Send(ctx, alice.ID, bob.ID, "first")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, bob.ID, alice.ID, "second")
	require.NoError(t, err)

	conversations, err := f.svc.Conversations(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	messages, err := f.svc.Messages(ctx, conversations[0].ID, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	_, err = f.svc.Messages(ctx, conversations[0].ID, carol.ID, 10)
	require.True(t, errs.IsNotFound(err))

	_, err = f.svc.Messages(ctx, uuid.New(), alice.ID, 10)
	require.True(t, errs.IsNotFound(err))
}
