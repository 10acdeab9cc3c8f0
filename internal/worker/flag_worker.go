package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edquest/proctor-backend/internal/config"
	"github.com/edquest/proctor-backend/internal/model"
	"github.com/edquest/proctor-backend/internal/realtime"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// FlagDB is the subset of *pgxpool.Pool the worker writes through.
type FlagDB interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// FlagQueue pushes malpractice flags for asynchronous persistence.
type FlagQueue struct {
	rdb *redis.Client
}

func NewFlagQueue(rdb *redis.Client) *FlagQueue {
	return &FlagQueue{rdb: rdb}
}

// Enqueue appends a flag to the persistence queue.
func (q *FlagQueue) Enqueue(ctx context.Context, flag model.ProctorFlag) error {
	data, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("encode flag: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistFlagsQueue, data).Err()
}

// FlagWorker drains the flag queue into proctor_flags in batches and
// announces each stored flag on the monitor feed.
type FlagWorker struct {
	db        FlagDB
	rdb       *redis.Client
	publisher *realtime.Publisher
	log       zerolog.Logger

	errorBackoff   time.Duration
	requeueBackoff time.Duration
}

func NewFlagWorker(db FlagDB, rdb *redis.Client, publisher *realtime.Publisher, log zerolog.Logger) *FlagWorker {
	return &FlagWorker{
		db:             db,
		rdb:            rdb,
		publisher:      publisher,
		log:            log.With().Str("component", "flag_worker").Logger(),
		errorBackoff:   3 * time.Second,
		requeueBackoff: 2 * time.Second,
	}
}

// Start blocks until ctx is cancelled, then flushes what is buffered.
func (w *FlagWorker) Start(ctx context.Context) {
	w.log.Info().Msg("FlagWorker started")

	buffer := make([]*model.ProctorFlag, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// BLPop blocks for PollTimeout and returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistFlagsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Dur("backoff", w.errorBackoff).Msg("Redis connection error")
			sleep(ctx, w.errorBackoff)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var flag model.ProctorFlag
		if err := json.Unmarshal([]byte(result[1]), &flag); err != nil {
			// Malformed JSON can never succeed, so it is discarded.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed flag")
			continue
		}
		if len(buffer) == 0 {
			lastFlushTime = time.Now()
		}
		buffer = append(buffer, &flag)
	}
}

// flushSafe attempts a bulk insert, then row-by-row insert, then requeue.
func (w *FlagWorker) flushSafe(ctx context.Context, batch []*model.ProctorFlag) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
		return
	}
	w.announce(ctx, batch)
}

func (w *FlagWorker) bulkInsert(ctx context.Context, batch []*model.ProctorFlag) error {
	rows := make([][]any, 0, len(batch))
	for _, f := range batch {
		rows = append(rows, []any{f.TestID, nullable(f.UserID), f.SessionID, f.Reason, f.FlaggedAt})
	}

	_, err := w.db.CopyFrom(
		ctx,
		pgx.Identifier{"proctor_flags"},
		[]string{"test_id", "user_id", "session_id", "reason", "flagged_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *FlagWorker) fallbackInsert(ctx context.Context, batch []*model.ProctorFlag) {
	stored := make([]*model.ProctorFlag, 0, len(batch))
	requeueList := make([]*model.ProctorFlag, 0)

	for _, f := range batch {
		_, err := w.db.Exec(ctx,
			`INSERT INTO proctor_flags (test_id, user_id, session_id, reason, flagged_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			f.TestID, nullable(f.UserID), f.SessionID, f.Reason, f.FlaggedAt,
		)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", f.SessionID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, f)
			continue
		}
		stored = append(stored, f)
	}

	w.announce(ctx, stored)
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *FlagWorker) requeue(ctx context.Context, items []*model.ProctorFlag) {
	pipe := w.rdb.Pipeline()
	for _, f := range items {
		data, _ := json.Marshal(f)
		pipe.RPush(ctx, config.WorkerKey.PersistFlagsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue flags to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed flags back to Redis")
	sleep(ctx, w.requeueBackoff)
}

func (w *FlagWorker) announce(ctx context.Context, flags []*model.ProctorFlag) {
	for _, f := range flags {
		w.publisher.Publish(ctx, f.TestID, realtime.EventFlag, f)
	}
}

func (w *FlagWorker) shutdown(buffer []*model.ProctorFlag) {
	w.log.Info().Int("buffered", len(buffer)).Msg("Worker stopping, flushing remaining buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
