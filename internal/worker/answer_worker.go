package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/axisprep/mocktest-backend/internal/config"
	"github.com/axisprep/mocktest-backend/internal/repository"
)

const (
	AnswerBatchSize    = 100
	AnswerBatchTimeout = 2 * time.Second
	AnswerPollTimeout  = 1 * time.Second
)

// AnswerWorker consumes the persist queue and batch-upserts sheet answers
// into Postgres. The live sheet in Redis stays authoritative; this worker
// only maintains the durable fallback.
type AnswerWorker struct {
	answerRepo *repository.AnswerRepository
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(answerRepo *repository.AnswerRepository, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		answerRepo: answerRepo,
		rdb:        rdb,
		log:        log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("answer worker started")

	batch := make([]repository.SheetAnswer, 0, AnswerBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= AnswerBatchSize || time.Since(lastFlush) >= AnswerBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("shutdown requested, flushing remaining batch")
			w.flushSafe(context.Background(), batch)
			w.drain(context.Background())
			w.log.Info().Msg("answer worker stopped")
			return

		default:
			item, err := w.rdb.BLPop(ctx, AnswerPollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var a repository.SheetAnswer
			if err := json.Unmarshal([]byte(item[1]), &a); err != nil {
				w.log.Error().Err(err).Msg("invalid queue payload")
				continue
			}
			batch = append(batch, a)
		}
	}
}

// answerRow identifies one sheet row a selection targets.
type answerRow struct {
	userID   int
	testID   uuid.UUID
	question int
}

// dedupeAnswers collapses repeated selections of the same question to the
// latest one, keeping queue order otherwise. A student changing an answer
// within one batch window would otherwise make the single UNNEST upsert
// touch the same row twice, which Postgres rejects (error 21000).
func dedupeAnswers(batch []repository.SheetAnswer) []repository.SheetAnswer {
	seen := make(map[answerRow]int, len(batch))
	out := make([]repository.SheetAnswer, 0, len(batch))
	for _, a := range batch {
		row := answerRow{userID: a.UserID, testID: a.TestID, question: a.Question}
		if i, ok := seen[row]; ok {
			out[i] = a
			continue
		}
		seen[row] = len(out)
		out = append(out, a)
	}
	return out
}

// flushSafe writes a batch; on failure the items go back on the queue so a
// later pass (or another instance) retries them.
func (w *AnswerWorker) flushSafe(ctx context.Context, batch []repository.SheetAnswer) {
	if len(batch) == 0 {
		return
	}
	batch = dedupeAnswers(batch)

	if err := w.answerRepo.BulkUpsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk upsert failed, requeueing batch")
		for i := range batch {
			raw, err := json.Marshal(batch[i])
			if err != nil {
				w.log.Error().Err(err).Msg("failed to requeue answer")
				continue
			}
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
		}
		return
	}

	w.log.Debug().Int("size", len(batch)).Msg("answer batch persisted")
}

// drain empties whatever is still queued before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	batch := make([]repository.SheetAnswer, 0, AnswerBatchSize)
	drained := 0

	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var a repository.SheetAnswer
		if err := json.Unmarshal([]byte(result), &a); err != nil {
			w.log.Error().Err(err).Msg("drain unmarshal error")
			continue
		}
		batch = append(batch, a)
		drained++

		if len(batch) >= AnswerBatchSize {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
		}
	}
	w.flushSafe(ctx, batch)

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("drained remaining answers")
	}
}
