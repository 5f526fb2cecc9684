// Package query answers filtered reads over wishes and wishlists.
package query

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/models"
	"wishlist-bot/internal/wishlist"
)

// MaxLimit caps a single page.
const MaxLimit = 500

// WishFilter narrows Wishes; every set field must match.
type WishFilter struct {
	UserID       *uint
	TelegramID   *int64
	WishlistID   *uint
	Status       *models.WishStatus
	ReservedByID *uint
	GiftedByID   *uint
	Limit        int
	Offset       int
}

type WishlistFilter struct {
	UserID     *uint
	TelegramID *int64
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Wishes(ctx context.Context, f WishFilter) ([]models.Wish, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status %q", *f.Status)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperr.Validation("limit and offset must not be negative")
	}

	q := s.db.WithContext(ctx).Model(&models.Wish{})
	q = s.byOwner(q, f.UserID, f.TelegramID)
	if f.WishlistID != nil {
		q = q.Where("wishlist_id = ?", *f.WishlistID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.ReservedByID != nil {
		q = q.Where("reserved_by_id = ?", *f.ReservedByID)
	}
	if f.GiftedByID != nil {
		q = q.Where("gifted_by_id = ?", *f.GiftedByID)
	}

	limit := f.Limit
	if limit == 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	q = q.Order(models.DisplayOrder).Limit(limit).Offset(f.Offset)

	var wishes []models.Wish
	if err := q.Find(&wishes).Error; err != nil {
		return nil, fmt.Errorf("query wishes: %w", err)
	}
	return wishes, nil
}

// Wishlists returns matching wishlists in display order with wishes_count filled.
func (s *Service) Wishlists(ctx context.Context, f WishlistFilter) ([]models.Wishlist, error) {
	q := s.db.WithContext(ctx).Model(&models.Wishlist{}).Scopes(wishlist.WithWishesCount)
	q = s.byOwner(q, f.UserID, f.TelegramID)

	var lists []models.Wishlist
	if err := q.Order(models.DisplayOrder).Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("query wishlists: %w", err)
	}
	return lists, nil
}

// byOwner filters on user_id; an unknown telegram id matches nothing.
func (s *Service) byOwner(q *gorm.DB, userID *uint, telegramID *int64) *gorm.DB {
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if telegramID != nil {
		owners := s.db.Model(&models.User{}).Select("id").Where("telegram_id = ?", *telegramID)
		q = q.Where("user_id IN (?)", owners)
	}
	return q
}
