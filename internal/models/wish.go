package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WishStatus string

const (
	WishActive    WishStatus = "active"
	WishReserved  WishStatus = "reserved"
	WishFulfilled WishStatus = "fulfilled"
)

func (s WishStatus) Valid() bool {
	switch s {
	case WishActive, WishReserved, WishFulfilled:
		return true
	}
	return false
}

const DefaultCurrency = "₽"

type Wish struct {
	ID           uint                `gorm:"primaryKey"`
	WishlistID   uint                `gorm:"not null;index:idx_wishes_wishlist_order,priority:1"`
	Wishlist     Wishlist            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	UserID       uint                `gorm:"not null;index:idx_wishes_user_status,priority:1"`
	User         User                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Title        string              `gorm:"size:200;not null"`
	Description  string
	Link         string              `gorm:"size:2048"`
	ImageURL     string              `gorm:"size:2048"`
	Price        decimal.NullDecimal `gorm:"type:numeric(10,2)"`
	Currency     string              `gorm:"size:10;not null;default:'₽'"`
	Status       WishStatus          `gorm:"size:20;not null;default:'active';index;index:idx_wishes_user_status,priority:2"`
	ReservedByID *uint               `gorm:"index"`
	ReservedBy   *User               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	GiftedByID   *uint               `gorm:"index"`
	GiftedBy     *User               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Order        int                 `gorm:"not null;default:0;index:idx_wishes_wishlist_order,priority:2"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ReservedAt   *time.Time
	GiftedAt     *time.Time
}
