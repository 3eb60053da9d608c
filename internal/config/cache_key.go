package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session (JTI).
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// TestPayloadKey returns the cache key for a test's student-facing payload.
func (r *CacheKeyStruct) TestPayloadKey(testID string) string {
	return fmt.Sprintf("test:%s:payload", testID)
}

// TestAnswerKeyKey returns the cache key for a test's answer key hash.
func (r *CacheKeyStruct) TestAnswerKeyKey(testID string) string {
	return fmt.Sprintf("test:%s:key", testID)
}

// TestDurationKey returns the cache key for a test's duration in minutes.
func (r *CacheKeyStruct) TestDurationKey(testID string) string {
	return fmt.Sprintf("test:%s:duration", testID)
}

// SheetKey returns the cache key for a user's live OMR sheet hash.
func (r *CacheKeyStruct) SheetKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:sheet", userID, testID)
}

// SessionStartKey returns the cache key for a user's attempt start instant.
func (r *CacheKeyStruct) SessionStartKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:session_start", userID, testID)
}

// SubmitGuardKey returns the cache key guarding a session's one submission.
func (r *CacheKeyStruct) SubmitGuardKey(testID string, userID int) string {
	return fmt.Sprintf("user:%d:test:%s:submitting", userID, testID)
}

// SessionDeadlineSet returns the ZSET of live session deadlines (unix
// seconds). Members are "<user_id>|<test_id>".
func (r *CacheKeyStruct) SessionDeadlineSet() string {
	return "session_deadlines"
}

// DeadlineMember builds a deadline ZSET member for a session.
func (r *CacheKeyStruct) DeadlineMember(testID string, userID int) string {
	return fmt.Sprintf("%d|%s", userID, testID)
}

var CacheKey = NewCacheKeyStruct()
