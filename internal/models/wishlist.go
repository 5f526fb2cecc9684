package models

import (
	"time"
)

type Wishlist struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index:idx_wishlists_user_order,priority:1"`
	User        User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name        string `gorm:"size:200;not null"`
	Description string
	Order       int  `gorm:"not null;default:0;index:idx_wishlists_user_order,priority:2"`
	IsPublic    bool `gorm:"not null"`
	IsDefault   bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// WishesCount is filled by read queries only.
	WishesCount int64 `gorm:"->;-:migration"`
}

// DisplayOrder is the ordering used for lists and for default promotion.
const DisplayOrder = `"order" ASC, created_at DESC, id ASC`
