package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/axisprep/mocktest-backend/internal/config"
	"github.com/axisprep/mocktest-backend/internal/repository"
)

// submitGuardTTL bounds how long a crashed submission can block retries.
const submitGuardTTL = 2 * time.Minute

// DueSession identifies a live session whose clock has run out.
type DueSession struct {
	TestID uuid.UUID
	UserID int
}

// LiveStore is the Redis-backed hot path for in-progress attempts: the live
// OMR sheet, the one-submission guard, and the deadline index. Postgres
// (via AnswerRepository) is the durable fallback for the sheet.
type LiveStore struct {
	rdb        *redis.Client
	answerRepo *repository.AnswerRepository
}

// NewLiveStore creates a new LiveStore.
func NewLiveStore(rdb *redis.Client, answerRepo *repository.AnswerRepository) *LiveStore {
	return &LiveStore{rdb: rdb, answerRepo: answerRepo}
}

// Select records one bubble selection in the live sheet hash. Re-selecting
// a question overwrites the previous option.
func (s *LiveStore) Select(ctx context.Context, testID uuid.UUID, userID, question, option int) error {
	sheetKey := config.CacheKey.SheetKey(testID.String(), userID)
	if err := s.rdb.HSet(ctx, sheetKey, strconv.Itoa(question), strconv.Itoa(option)).Err(); err != nil {
		return fmt.Errorf("store selection: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the live sheet. On an empty hash it rebuilds
// from the durable sheet in Postgres and self-heals the cache, so a Redis
// flush mid-attempt does not lose answers that already reached the queue.
func (s *LiveStore) Snapshot(ctx context.Context, testID uuid.UUID, userID int) (map[int]int, error) {
	sheetKey := config.CacheKey.SheetKey(testID.String(), userID)

	fields, err := s.rdb.HGetAll(ctx, sheetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get sheet: %w", err)
	}

	if len(fields) > 0 {
		sheet := make(map[int]int, len(fields))
		for q, opt := range fields {
			qn, qErr := strconv.Atoi(q)
			on, oErr := strconv.Atoi(opt)
			if qErr != nil || oErr != nil {
				return nil, fmt.Errorf("corrupt sheet entry %q=%q", q, opt)
			}
			sheet[qn] = on
		}
		return sheet, nil
	}

	// Cache miss: fall back to the durable sheet.
	sheet, err := s.answerRepo.GetSheet(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("get durable sheet: %w", err)
	}

	if len(sheet) > 0 {
		heal := make(map[string]string, len(sheet))
		for q, opt := range sheet {
			heal[strconv.Itoa(q)] = strconv.Itoa(opt)
		}
		_ = s.rdb.HSet(ctx, sheetKey, heal).Err()
	}
	return sheet, nil
}

// AnsweredCount returns how many questions currently carry a selection.
func (s *LiveStore) AnsweredCount(ctx context.Context, testID uuid.UUID, userID int) (int, error) {
	n, err := s.rdb.HLen(ctx, config.CacheKey.SheetKey(testID.String(), userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count selections: %w", err)
	}
	return int(n), nil
}

// Clear removes the live sheet and its durable copy once the attempt is
// recorded.
func (s *LiveStore) Clear(ctx context.Context, testID uuid.UUID, userID int) error {
	if err := s.rdb.Del(ctx, config.CacheKey.SheetKey(testID.String(), userID)).Err(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}
	return s.answerRepo.DeleteSheet(ctx, testID, userID)
}

// AcquireSubmitGuard takes the one-submission lock for a session. Returns
// false if another submission (manual or timer) already holds it. The TTL
// releases the lock if the holder crashes before finishing.
func (s *LiveStore) AcquireSubmitGuard(ctx context.Context, testID uuid.UUID, userID int) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.SubmitGuardKey(testID.String(), userID), 1, submitGuardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquire submit guard: %w", err)
	}
	return ok, nil
}

// ReleaseSubmitGuard frees the one-submission lock after a failed
// submission so the student can retry.
func (s *LiveStore) ReleaseSubmitGuard(ctx context.Context, testID uuid.UUID, userID int) error {
	return s.rdb.Del(ctx, config.CacheKey.SubmitGuardKey(testID.String(), userID)).Err()
}

// SetDeadline registers the session in the deadline index, scored by the
// unix second its clock expires.
func (s *LiveStore) SetDeadline(ctx context.Context, testID uuid.UUID, userID int, deadline time.Time) error {
	member := config.CacheKey.DeadlineMember(testID.String(), userID)
	err := s.rdb.ZAdd(ctx, config.CacheKey.SessionDeadlineSet(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("index deadline: %w", err)
	}
	return nil
}

// RemoveDeadline drops the session from the deadline index.
func (s *LiveStore) RemoveDeadline(ctx context.Context, testID uuid.UUID, userID int) error {
	member := config.CacheKey.DeadlineMember(testID.String(), userID)
	return s.rdb.ZRem(ctx, config.CacheKey.SessionDeadlineSet(), member).Err()
}

// DueSessions returns every session whose deadline is at or before now.
func (s *LiveStore) DueSessions(ctx context.Context, now time.Time) ([]DueSession, error) {
	members, err := s.rdb.ZRangeByScore(ctx, config.CacheKey.SessionDeadlineSet(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan deadlines: %w", err)
	}

	due := make([]DueSession, 0, len(members))
	for _, m := range members {
		parts := strings.SplitN(m, "|", 2)
		if len(parts) != 2 {
			continue
		}
		userID, uErr := strconv.Atoi(parts[0])
		testID, tErr := uuid.Parse(parts[1])
		if uErr != nil || tErr != nil {
			continue
		}
		due = append(due, DueSession{TestID: testID, UserID: userID})
	}
	return due, nil
}
