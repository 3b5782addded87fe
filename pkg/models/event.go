package models

import "time"

// RestartEvent records the outcome of one restart attempt
type RestartEvent struct {
	ID         int64     `json:"id,omitempty"`
	TargetID   string    `json:"target_id"`
	TargetName string    `json:"target_name"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}
