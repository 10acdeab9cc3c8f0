package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/realtime"
)

type fakeFlagDB struct {
	mu       sync.Mutex
	copyErr  error
	execErr  func(args []any) error
	copied   [][]any
	executed [][]any
}

func (f *fakeFlagDB) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copied = append(f.copied, vals)
		n++
	}
	return n, nil
}

func (f *fakeFlagDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		if err := f.execErr(args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	f.executed = append(f.executed, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeFlagDB) copiedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.copied)
}

func newWorker(t *testing.T, db FlagDB) (*FlagWorker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	w := NewFlagWorker(db, rdb, realtime.NewPublisher(rdb, zerolog.Nop()), zerolog.Nop())
	w.requeueBackoff = 0
	w.errorBackoff = 0
	return w, rdb
}

func flag(session, reason string) model.ProctorFlag {
	return model.ProctorFlag{
		TestID:    "t-1",
		UserID:    "u-1",
		SessionID: session,
		Reason:    reason,
		FlaggedAt: time.Date(2026, 5, 12, 8, 30, 0, 0, time.UTC),
	}
}

func TestWorkerPersistsQueuedFlags(t *testing.T) {
	db := &fakeFlagDB{}
	w, rdb := newWorker(t, db)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	q := NewFlagQueue(rdb)
	require.NoError(t, q.Enqueue(ctx, flag("s-1", "Window focus lost")))
	require.NoError(t, q.Enqueue(ctx, flag("s-1", "Face not detected in frame")))

	assert.Eventually(t, func() bool { return db.copiedCount() == 2 }, 6*time.Second, 50*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "Window focus lost", db.copied[0][3])
}

func TestWorkerFlushesBufferOnShutdown(t *testing.T) {
	db := &fakeFlagDB{}
	w, rdb := newWorker(t, db)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, NewFlagQueue(rdb).Enqueue(ctx, flag("s-1", "Tab switching detected")))

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		n, _ := rdb.LLen(context.Background(), config.WorkerKey.PersistFlagsQueue).Result()
		return n == 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, db.copiedCount())
}

func TestFallbackRequeuesFailedRows(t *testing.T) {
	db := &fakeFlagDB{
		copyErr: errors.New("copy failed"),
		execErr: func(args []any) error {
			if args[2] == "s-bad" {
				return errors.New("insert failed")
			}
			return nil
		},
	}
	w, rdb := newWorker(t, db)
	ctx := context.Background()

	good, bad := flag("s-good", "a"), flag("s-bad", "b")
	w.flushSafe(ctx, []*model.ProctorFlag{&good, &bad})

	assert.Len(t, db.executed, 1)
	n, err := rdb.LLen(ctx, config.WorkerKey.PersistFlagsQueue).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEmptyUserIDStoredAsNull(t *testing.T) {
	db := &fakeFlagDB{}
	w, _ := newWorker(t, db)

	f := flag("s-1", "a")
	f.UserID = ""
	w.flushSafe(context.Background(), []*model.ProctorFlag{&f})

	require.Len(t, db.copied, 1)
	assert.Nil(t, db.copied[0][1])
}
