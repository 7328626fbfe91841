package notify

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/models"
)

// Task is one fan-out message enqueued for asynchronous delivery.
type Task struct {
	Subject     models.Ref
	RecipientID int64
	ActorID     int64
	Type        models.NotificationType
	ParentID    *int64
	EnqueuedAt  time.Time
}

// Dispatcher delivers notification tasks through a worker pool. Dispatch
// returns immediately; delivery is retried with exponential backoff and
// jitter up to the attempt budget, then dropped and logged. Unlike
// Notifier.Notify this path never toggles — identical calls each produce
// a distinct row.
type Dispatcher struct {
	repo        *db.Repository
	notifs      *db.NotificationRepository
	queue       chan Task
	remote      *RedisQueue
	workers     int
	maxAttempts int
	retryBase   time.Duration
	logger      *zap.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// DispatcherOptions tunes the worker pool and retry budget.
type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryBase   time.Duration
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(repo *db.Repository, opts DispatcherOptions, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 200 * time.Millisecond
	}
	return &Dispatcher{
		repo:        repo,
		notifs:      db.NewNotificationRepository(repo),
		queue:       make(chan Task, opts.QueueSize),
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		retryBase:   opts.RetryBase,
		logger:      logger,
	}
}

// WithRemoteQueue reroutes Dispatch through a redis list so a separate
// worker process delivers. The local pool still drains anything already
// enqueued in-process.
func (d *Dispatcher) WithRemoteQueue(q *RedisQueue) *Dispatcher {
	d.remote = q
	return d
}

// Start launches the worker pool. Workers drain the queue until Stop
// closes it; ctx bounds in-flight deliveries.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for task := range d.queue {
				d.deliver(ctx, task)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight deliveries to finish.
// Safe to call concurrently with Dispatch: the queue is only closed once
// no enqueue holds the lock, and later enqueues see the closed flag.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Dispatch enqueues a notification task and returns immediately. The
// request path never blocks on delivery: a full queue drops the task.
func (d *Dispatcher) Dispatch(subject models.Ref, recipientID, actorID int64, typ models.NotificationType, parentID *int64) {
	if actorID == recipientID {
		return
	}
	task := Task{
		Subject:     subject,
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        typ,
		ParentID:    parentID,
		EnqueuedAt:  time.Now().UTC(),
	}
	if d.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := d.remote.Push(ctx, task); err != nil {
			d.logger.Warn("Remote notification queue push failed, dropping task",
				zap.Int64("recipient_id", recipientID),
				zap.String("type", string(typ)),
				zap.Error(err))
		}
		return
	}
	d.enqueue(task)
}

// enqueue places a task on the local channel, dropping when full or
// after Stop. The read lock keeps Stop from closing the channel between
// the flag check and the send.
func (d *Dispatcher) enqueue(task Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- task:
	default:
		d.logger.Warn("Notification queue full, dropping task",
			zap.Int64("recipient_id", task.RecipientID),
			zap.String("type", string(task.Type)))
	}
}

// Consume pulls tasks from the redis queue into the local worker pool
// until ctx is cancelled. Run by the delivery worker binary.
func (d *Dispatcher) Consume(ctx context.Context, q *RedisQueue) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, err := q.Pop(ctx, 5*time.Second)
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("Remote notification queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		d.enqueue(*task)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, task Task) {
	op := func() error {
		return d.write(ctx, task)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryBase
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(d.maxAttempts-1)), ctx))
	if err != nil {
		d.logger.Error("Notification delivery dropped after retry budget",
			zap.Int64("recipient_id", task.RecipientID),
			zap.Int64("actor_id", task.ActorID),
			zap.String("type", string(task.Type)),
			zap.Int("attempts", d.maxAttempts),
			zap.Error(err))
	}
}

// write performs one delivery attempt: suppression checks, then the
// notification row.
func (d *Dispatcher) write(ctx context.Context, task Task) error {
	if task.ActorID == task.RecipientID {
		return nil
	}

	var muted int64
	err := d.repo.DB().WithContext(ctx).Model(&models.MutedUser{}).
		Where("muter_id = ? AND muted_id = ?", task.RecipientID, task.ActorID).
		Count(&muted).Error
	if err != nil {
		return err
	}
	if muted > 0 {
		d.logger.Debug("Notification suppressed, actor muted by recipient",
			zap.Int64("recipient_id", task.RecipientID),
			zap.Int64("actor_id", task.ActorID))
		return nil
	}

	notif := &models.Notification{
		ID:            uuid.New(),
		PerformedByID: sql.NullInt64{Int64: task.ActorID, Valid: task.ActorID != 0},
		PerformedOnID: task.RecipientID,
		Type:          task.Type,
		Group:         models.NotifyGroupTwitter,
		SubjectKind:   task.Subject.Kind,
		SubjectID:     task.Subject.ID,
		CreatedAt:     time.Now().UTC(),
	}

	return d.repo.Transaction(ctx, func(tx *gorm.DB) error {
		return d.notifs.Create(ctx, tx, notif)
	})
}
