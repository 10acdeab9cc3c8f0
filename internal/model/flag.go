package model

import "time"

// ProctorFlag records one accepted malpractice trigger.
type ProctorFlag struct {
	TestID    string    `json:"test_id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"`
	FlaggedAt time.Time `json:"flagged_at"`
}
