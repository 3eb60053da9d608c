package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/axisprep/mocktest-backend/internal/model"
	"github.com/axisprep/mocktest-backend/internal/repository"
	"github.com/axisprep/mocktest-backend/internal/scoring"
)

// ─── Fakes ──────────────────────────────────────────────────────────

type fakeSessions struct {
	sessions map[string]*model.Session
}

func sessionKey(testID uuid.UUID, userID int) string {
	return fmt.Sprintf("%s|%d", testID, userID)
}

func (f *fakeSessions) GetByTestAndUser(_ context.Context, testID uuid.UUID, userID int) (*model.Session, error) {
	s, ok := f.sessions[sessionKey(testID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessions) Complete(_ context.Context, testID uuid.UUID, userID int) error {
	s, ok := f.sessions[sessionKey(testID, userID)]
	if !ok {
		return pgx.ErrNoRows
	}
	s.Status = model.SessionStatusCompleted
	return nil
}

type fakeAttempts struct {
	attempts  map[string]*model.Attempt
	createErr error
}

func (f *fakeAttempts) Create(_ context.Context, a *model.Attempt) error {
	if f.createErr != nil {
		return f.createErr
	}
	key := sessionKey(a.TestID, a.UserID)
	if _, exists := f.attempts[key]; exists {
		return repository.ErrDuplicate
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	f.attempts[key] = a
	return nil
}

func (f *fakeAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	for _, a := range f.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttempts) GetByTestAndUser(_ context.Context, testID uuid.UUID, userID int) (*model.Attempt, error) {
	a, ok := f.attempts[sessionKey(testID, userID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return a, nil
}

func (f *fakeAttempts) ListByUser(_ context.Context, userID int) ([]model.Attempt, error) {
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) Leaderboard(_ context.Context, _ uuid.UUID, _, _ int) ([]repository.LeaderboardRow, int, error) {
	return nil, 0, nil
}

type fakeSheets struct {
	sheet       map[int]int
	guardHeld   bool
	cleared     bool
	deadlineSet bool
	snapshotErr error
}

func (f *fakeSheets) Snapshot(_ context.Context, _ uuid.UUID, _ int) (map[int]int, error) {
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	copied := make(map[int]int, len(f.sheet))
	for q, o := range f.sheet {
		copied[q] = o
	}
	return copied, nil
}

func (f *fakeSheets) Clear(_ context.Context, _ uuid.UUID, _ int) error {
	f.cleared = true
	f.sheet = map[int]int{}
	return nil
}

func (f *fakeSheets) AcquireSubmitGuard(_ context.Context, _ uuid.UUID, _ int) (bool, error) {
	if f.guardHeld {
		return false, nil
	}
	f.guardHeld = true
	return true, nil
}

func (f *fakeSheets) ReleaseSubmitGuard(_ context.Context, _ uuid.UUID, _ int) error {
	f.guardHeld = false
	return nil
}

func (f *fakeSheets) RemoveDeadline(_ context.Context, _ uuid.UUID, _ int) error {
	f.deadlineSet = false
	return nil
}

type fakeKeys struct {
	key      scoring.Key
	total    int
	duration int
}

func (f *fakeKeys) AnswerKey(_ context.Context, _ uuid.UUID) (scoring.Key, int, error) {
	return f.key, f.total, nil
}

func (f *fakeKeys) Duration(_ context.Context, _ uuid.UUID) (int, error) {
	return f.duration, nil
}

// ─── Fixture ────────────────────────────────────────────────────────

type submitFixture struct {
	svc      *AttemptService
	sessions *fakeSessions
	attempts *fakeAttempts
	sheets   *fakeSheets
	testID   uuid.UUID
	userID   int
}

func newSubmitFixture(t *testing.T) *submitFixture {
	t.Helper()

	testID := uuid.New()
	userID := 7

	sessions := &fakeSessions{sessions: map[string]*model.Session{
		sessionKey(testID, userID): {
			ID:        uuid.New(),
			TestID:    testID,
			UserID:    userID,
			StartedAt: time.Now().Add(-30 * time.Minute),
			Status:    model.SessionStatusInProgress,
		},
	}}
	attempts := &fakeAttempts{attempts: map[string]*model.Attempt{}}
	sheets := &fakeSheets{
		sheet:       map[int]int{1: 1, 2: 4, 4: 4},
		deadlineSet: true,
	}
	keys := &fakeKeys{
		key:      scoring.Key{1: 1, 2: 2, 3: 3, 4: 4, 5: 1},
		total:    5,
		duration: 180,
	}

	return &submitFixture{
		svc:      NewAttemptService(sessions, attempts, sheets, keys),
		sessions: sessions,
		attempts: attempts,
		sheets:   sheets,
		testID:   testID,
		userID:   userID,
	}
}

// ─── Tests ──────────────────────────────────────────────────────────

func TestSubmitRecordsScoredAttempt(t *testing.T) {
	f := newSubmitFixture(t)

	attempt, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// 2 correct, 1 wrong, 2 unattempted out of 5.
	if attempt.Score != 7 {
		t.Errorf("Score = %d, want 7", attempt.Score)
	}
	if attempt.CorrectCount != 2 || attempt.WrongCount != 1 || attempt.UnattemptedCount != 2 {
		t.Errorf("breakdown = %d/%d/%d, want 2/1/2",
			attempt.CorrectCount, attempt.WrongCount, attempt.UnattemptedCount)
	}

	sess := f.sessions.sessions[sessionKey(f.testID, f.userID)]
	if sess.Status != model.SessionStatusCompleted {
		t.Errorf("session status = %s, want COMPLETED", sess.Status)
	}
	if !f.sheets.cleared {
		t.Error("sheet was not cleared after submission")
	}
	if f.sheets.deadlineSet {
		t.Error("deadline was not removed after submission")
	}
}

func TestSubmitTimeSpentClampedToDuration(t *testing.T) {
	f := newSubmitFixture(t)
	f.sessions.sessions[sessionKey(f.testID, f.userID)].StartedAt = time.Now().Add(-10 * time.Hour)

	attempt, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerTimer)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if attempt.TimeSpentSeconds != 180*60 {
		t.Errorf("TimeSpentSeconds = %d, want %d", attempt.TimeSpentSeconds, 180*60)
	}
}

func TestSubmitSecondCallReturnsAlreadySubmitted(t *testing.T) {
	f := newSubmitFixture(t)

	if _, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	_, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second Submit() error = %v, want ErrAlreadySubmitted", err)
	}
	if len(f.attempts.attempts) != 1 {
		t.Errorf("attempt count = %d, want 1", len(f.attempts.attempts))
	}
}

func TestSubmitWhileGuardHeldReturnsInProgress(t *testing.T) {
	f := newSubmitFixture(t)
	f.sheets.guardHeld = true

	_, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual)
	if !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("Submit() error = %v, want ErrSubmitInProgress", err)
	}
	if len(f.attempts.attempts) != 0 {
		t.Error("attempt was recorded despite held guard")
	}
}

func TestSubmitManualVsTimerRaceYieldsOneAttempt(t *testing.T) {
	// Simulates the guard being lost (TTL expiry or Redis flush): both
	// submitters reach the database, the unique index settles it.
	f := newSubmitFixture(t)

	if _, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual); err != nil {
		t.Fatalf("manual Submit() error = %v", err)
	}

	// Force the session back to IN_PROGRESS so the timer path reaches the
	// attempt insert, as if session completion hadn't landed yet.
	f.sessions.sessions[sessionKey(f.testID, f.userID)].Status = model.SessionStatusInProgress
	f.sheets.guardHeld = false

	_, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerTimer)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("timer Submit() error = %v, want ErrAlreadySubmitted", err)
	}
	if len(f.attempts.attempts) != 1 {
		t.Errorf("attempt count = %d, want exactly 1", len(f.attempts.attempts))
	}
}

func TestSubmitFailureReleasesGuardAndPreservesSheet(t *testing.T) {
	f := newSubmitFixture(t)
	f.attempts.createErr = errors.New("connection refused")

	_, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual)
	if err == nil {
		t.Fatal("Submit() succeeded, want error")
	}
	if f.sheets.guardHeld {
		t.Error("guard still held after failed submission")
	}
	if f.sheets.cleared {
		t.Error("sheet was cleared on failure; answers must be preserved for retry")
	}
	if len(f.sheets.sheet) != 3 {
		t.Errorf("sheet has %d answers, want 3", len(f.sheets.sheet))
	}

	// Retry after the backend recovers must succeed with the same answers.
	f.attempts.createErr = nil
	attempt, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerManual)
	if err != nil {
		t.Fatalf("retry Submit() error = %v", err)
	}
	if attempt.Score != 7 {
		t.Errorf("retry Score = %d, want 7", attempt.Score)
	}
}

func TestSubmitWithoutSessionReturnsNoActiveSession(t *testing.T) {
	f := newSubmitFixture(t)

	_, err := f.svc.Submit(context.Background(), uuid.New(), f.userID, TriggerManual)
	if !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Submit() error = %v, want ErrNoActiveSession", err)
	}
}

func TestSubmitEmptySheetScoresAllUnattempted(t *testing.T) {
	f := newSubmitFixture(t)
	f.sheets.sheet = map[int]int{}

	attempt, err := f.svc.Submit(context.Background(), f.testID, f.userID, TriggerTimer)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if attempt.Score != 0 || attempt.UnattemptedCount != 5 {
		t.Errorf("got score=%d unattempted=%d, want 0 and 5", attempt.Score, attempt.UnattemptedCount)
	}
}
