package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestMonitorChannel returns the Redis PubSub channel name for a test's live monitor.
func (r *CacheKeyStruct) TestMonitorChannel(testID string) string {
	return fmt.Sprintf("test:%s:monitor", testID)
}

// ActivityFeedChannel is the PubSub channel carrying monitor messages of every test.
func (r *CacheKeyStruct) ActivityFeedChannel() string {
	return "activity:feed"
}

// UserActiveProctorKey marks a user as having an open proctoring stream for a test.
func (r *CacheKeyStruct) UserActiveProctorKey(testID, userID string) string {
	return fmt.Sprintf("user:%s:test:%s:proctor", userID, testID)
}

var CacheKey = NewCacheKeyStruct()
