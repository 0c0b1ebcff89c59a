package models

import (
	"time"

	"github.com/google/uuid"
)

// Follow is a follower → followee edge. The composite unique index keeps the
// edge idempotent under repeated follow requests.
type Follow struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FollowerID uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follower_followee"`
	FolloweeID uuid.UUID `json:"followee_id" gorm:"type:uuid;not null;uniqueIndex:idx_follower_followee"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}
