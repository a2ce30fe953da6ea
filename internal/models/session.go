package models

import (
	"context"
	"time"
)

// SessionSnapshot is the persisted form of one wizard session.
type SessionSnapshot struct {
	ID         string                 `json:"id" db:"id"`
	Kind       string                 `json:"kind" db:"kind"`
	TargetID   string                 `json:"targetId,omitempty" db:"target_id"`
	Step       int                    `json:"step" db:"step"`
	State      string                 `json:"state" db:"state"`
	Draft      map[string]interface{} `json:"draft" db:"draft"`
	Generation uint64                 `json:"generation" db:"generation"`
	UpdatedAt  time.Time              `json:"updatedAt" db:"updated_at"`
}

// IsExpired reports whether the snapshot has been idle longer than idle.
func (s *SessionSnapshot) IsExpired(idle time.Duration, now time.Time) bool {
	return idle > 0 && now.Sub(s.UpdatedAt) > idle
}

// SessionRepository persists wizard session snapshots.
type SessionRepository interface {
	Save(ctx context.Context, snapshot *SessionSnapshot) error
	Find(ctx context.Context, id string) (*SessionSnapshot, error)
	Delete(ctx context.Context, id string) error
	DeleteIdle(ctx context.Context, before time.Time) (int64, error)
}
