package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/axisprep/mocktest-backend/internal/config"
	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/repository"
	"github.com/axisprep/mocktest-backend/internal/scoring"
)

// Test lifecycle errors.
var (
	ErrTestNotAvailable = errors.New("test is not available")
	ErrTestNotDraft     = errors.New("test is not in draft status")
	ErrNoAnswerKey      = errors.New("test has no answer key")
)

// LobbyTest is a published test as shown to a student, with their attempt
// overlaid if one exists.
type LobbyTest struct {
	model.TestPayload
	Attempted bool `json:"attempted"`
	Score     *int `json:"score,omitempty"`
}

// TestService handles test lifecycle and the Redis hot path for test data.
// Published tests are served from cache; Postgres is the fallback and the
// source of truth.
type TestService struct {
	testRepo    *repository.TestRepository
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, attemptRepo *repository.AttemptRepository, rdb *redis.Client) *TestService {
	return &TestService{testRepo: testRepo, attemptRepo: attemptRepo, rdb: rdb}
}

// Create inserts a new test in DRAFT status.
func (s *TestService) Create(ctx context.Context, req model.CreateTestRequest) (*model.Test, error) {
	total := req.TotalQuestions
	if total == 0 {
		total = model.DefaultTotalQuestions
	}

	test := &model.Test{
		Title:           req.Title,
		Section:         req.Section,
		Subsection:      req.Subsection,
		DurationMinutes: req.DurationMinutes,
		TotalQuestions:  total,
		PaperURL:        req.PaperURL,
		Status:          model.TestStatusDraft,
	}
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return test, nil
}

// Update modifies a draft test's descriptor fields.
func (s *TestService) Update(ctx context.Context, id uuid.UUID, req model.UpdateTestRequest) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusDraft {
		return nil, ErrTestNotDraft
	}

	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Section != "" {
		test.Section = req.Section
	}
	if req.Subsection != "" {
		test.Subsection = req.Subsection
	}
	if req.DurationMinutes > 0 {
		test.DurationMinutes = req.DurationMinutes
	}
	if req.TotalQuestions > 0 {
		test.TotalQuestions = req.TotalQuestions
	}
	if req.PaperURL != nil {
		test.PaperURL = req.PaperURL
	}

	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return test, nil
}

// SetAnswerKey validates and stores a draft test's answer key.
func (s *TestService) SetAnswerKey(ctx context.Context, id uuid.UUID, key model.AnswerKey) error {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}

	if _, err := scoring.NewKey(key, test.TotalQuestions); err != nil {
		return fmt.Errorf("validate answer key: %w", err)
	}

	if err := s.testRepo.SetAnswerKey(ctx, id, key); err != nil {
		return fmt.Errorf("set answer key: %w", err)
	}
	return nil
}

// Publish moves a draft test to PUBLISHED and warms the Redis caches that
// the attempt hot path reads from. A test cannot be published without an
// answer key: scoring would silently mark every answer wrong.
func (s *TestService) Publish(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusDraft {
		return nil, ErrTestNotDraft
	}
	if len(test.AnswerKey) == 0 {
		return nil, ErrNoAnswerKey
	}

	if err := s.testRepo.UpdateStatus(ctx, id, model.TestStatusPublished); err != nil {
		return nil, fmt.Errorf("publish test: %w", err)
	}
	test.Status = model.TestStatusPublished

	if err := s.warmCaches(ctx, test); err != nil {
		// Cache warming failure is not fatal: reads fall back to Postgres
		// and self-heal.
		log.Warn().Err(err).Str("test_id", id.String()).Msg("failed to warm test caches")
	}
	return test, nil
}

// Archive moves a published test to ARCHIVED and drops its caches.
func (s *TestService) Archive(ctx context.Context, id uuid.UUID) error {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return ErrTestNotAvailable
	}

	if err := s.testRepo.UpdateStatus(ctx, id, model.TestStatusArchived); err != nil {
		return fmt.Errorf("archive test: %w", err)
	}

	tid := id.String()
	s.rdb.Del(ctx,
		config.CacheKey.TestPayloadKey(tid),
		config.CacheKey.TestAnswerKeyKey(tid),
		config.CacheKey.TestDurationKey(tid),
	)
	return nil
}

// GetByID retrieves a test with its answer key. Admin use only.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.testRepo.GetByID(ctx, id)
}

// ListPaginated retrieves tests for the admin console.
func (s *TestService) ListPaginated(ctx context.Context, status *model.TestStatus, limit, offset int) ([]model.Test, int, error) {
	return s.testRepo.ListPaginated(ctx, status, limit, offset)
}

// GetLobby returns published tests with the student's attempt state
// overlaid, optionally narrowed to a section and subsection.
func (s *TestService) GetLobby(ctx context.Context, userID int, section, subsection string) ([]LobbyTest, error) {
	tests, err := s.testRepo.ListPublished(ctx, section, subsection)
	if err != nil {
		return nil, fmt.Errorf("list published tests: %w", err)
	}

	attempts, err := s.attemptRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attemptMap := make(map[uuid.UUID]*model.Attempt, len(attempts))
	for i := range attempts {
		attemptMap[attempts[i].TestID] = &attempts[i]
	}

	lobby := make([]LobbyTest, 0, len(tests))
	for _, t := range tests {
		entry := LobbyTest{TestPayload: payloadOf(&t)}
		if a, ok := attemptMap[t.ID]; ok {
			entry.Attempted = true
			entry.Score = &a.Score
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// GetPayload returns the student-facing descriptor of a published test.
// Served from Redis; falls back to Postgres on a cache miss and self-heals.
func (s *TestService) GetPayload(ctx context.Context, testID uuid.UUID) (*model.TestPayload, error) {
	payloadKey := config.CacheKey.TestPayloadKey(testID.String())

	raw, err := s.rdb.Get(ctx, payloadKey).Result()
	if err == nil {
		payload := &model.TestPayload{}
		if err := json.Unmarshal([]byte(raw), payload); err == nil {
			return payload, nil
		}
		// Corrupted cache entry falls through to the DB path.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload cache: %w", err)
	}

	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotAvailable
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotAvailable
	}

	if err := s.warmCaches(ctx, test); err != nil {
		log.Warn().Err(err).Str("test_id", testID.String()).Msg("failed to re-warm test caches")
	}

	payload := payloadOf(test)
	return &payload, nil
}

// AnswerKey returns the scoring key and total question count for a test.
// Served from the Redis hash; falls back to Postgres and self-heals.
func (s *TestService) AnswerKey(ctx context.Context, testID uuid.UUID) (scoring.Key, int, error) {
	tid := testID.String()

	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.TestAnswerKeyKey(tid)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("get answer key cache: %w", err)
	}

	if len(fields) > 0 {
		raw := make(map[int]int, len(fields))
		for q, opt := range fields {
			qn, qErr := strconv.Atoi(q)
			on, oErr := strconv.Atoi(opt)
			if qErr != nil || oErr != nil {
				return nil, 0, fmt.Errorf("corrupt answer key entry %q=%q", q, opt)
			}
			raw[qn] = on
		}

		total, err := s.TotalQuestions(ctx, testID)
		if err != nil {
			return nil, 0, err
		}
		key, err := scoring.NewKey(raw, total)
		if err != nil {
			return nil, 0, fmt.Errorf("cached answer key invalid: %w", err)
		}
		return key, total, nil
	}

	// Cache miss: load from Postgres and self-heal.
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, 0, fmt.Errorf("get test: %w", err)
	}
	if len(test.AnswerKey) == 0 {
		return nil, 0, ErrNoAnswerKey
	}
	key, err := scoring.NewKey(test.AnswerKey, test.TotalQuestions)
	if err != nil {
		return nil, 0, fmt.Errorf("stored answer key invalid: %w", err)
	}

	if err := s.warmCaches(ctx, test); err != nil {
		log.Warn().Err(err).Str("test_id", tid).Msg("failed to re-warm test caches")
	}
	return key, test.TotalQuestions, nil
}

// TotalQuestions reads a test's total question count via the cached
// payload, falling back to Postgres.
func (s *TestService) TotalQuestions(ctx context.Context, testID uuid.UUID) (int, error) {
	payload, err := s.GetPayload(ctx, testID)
	if err != nil {
		return 0, err
	}
	return payload.TotalQuestions, nil
}

// Duration returns a test's duration in minutes from cache with DB fallback.
func (s *TestService) Duration(ctx context.Context, testID uuid.UUID) (int, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.TestDurationKey(testID.String())).Result()
	if err == nil {
		minutes, convErr := strconv.Atoi(val)
		if convErr == nil {
			return minutes, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("get duration cache: %w", err)
	}

	payload, err := s.GetPayload(ctx, testID)
	if err != nil {
		return 0, err
	}
	return payload.DurationMinutes, nil
}

// PrewarmCaches loads every published test into Redis. Called on startup so
// the first students of the day never hit Postgres on the hot path.
func (s *TestService) PrewarmCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx, "", "")
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}
	for i := range tests {
		if err := s.warmCaches(ctx, &tests[i]); err != nil {
			log.Warn().Err(err).Str("test_id", tests[i].ID.String()).Msg("prewarm failed for test")
		}
	}
	log.Info().Int("count", len(tests)).Msg("test caches prewarmed")
	return nil
}

func (s *TestService) warmCaches(ctx context.Context, test *model.Test) error {
	tid := test.ID.String()

	payload, err := json.Marshal(payloadOf(test))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(tid), payload, 0).Err(); err != nil {
		return fmt.Errorf("cache payload: %w", err)
	}

	if len(test.AnswerKey) > 0 {
		fields := make(map[string]string, len(test.AnswerKey))
		for q, opt := range test.AnswerKey {
			fields[strconv.Itoa(q)] = strconv.Itoa(opt)
		}
		keyKey := config.CacheKey.TestAnswerKeyKey(tid)
		if err := s.rdb.Del(ctx, keyKey).Err(); err != nil {
			return fmt.Errorf("reset answer key cache: %w", err)
		}
		if err := s.rdb.HSet(ctx, keyKey, fields).Err(); err != nil {
			return fmt.Errorf("cache answer key: %w", err)
		}
	}

	if err := s.rdb.Set(ctx, config.CacheKey.TestDurationKey(tid), test.DurationMinutes, 0).Err(); err != nil {
		return fmt.Errorf("cache duration: %w", err)
	}
	return nil
}

func payloadOf(t *model.Test) model.TestPayload {
	return model.TestPayload{
		TestID:          t.ID,
		Title:           t.Title,
		Section:         t.Section,
		Subsection:      t.Subsection,
		DurationMinutes: t.DurationMinutes,
		TotalQuestions:  t.TotalQuestions,
		PaperURL:        t.PaperURL,
	}
}
