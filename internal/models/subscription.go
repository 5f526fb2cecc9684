package models

import (
	"time"
)

// Subscription is a follow edge: UserID follows TargetID.
type Subscription struct {
	UserID    uint `gorm:"primaryKey"`
	User      User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	TargetID  uint `gorm:"primaryKey;index"`
	Target    User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time
}
