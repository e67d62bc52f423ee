package types

import "time"

// SessionInfo is the listing view of a live session.
type SessionInfo struct {
	SessionID     SessionID  `json:"session_id"`
	SessionKey    SessionKey `json:"session_key"`
	DatasetLoaded bool       `json:"dataset_loaded"`
	Busy          bool       `json:"busy"`
	Messages      int        `json:"messages"`
	CreatedAt     time.Time  `json:"created_at"`
	LastActive    time.Time  `json:"last_active"`
}
