package identity

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/models"
)

const (
	columnGiftsGiven    = "gifts_given"
	columnGiftsReceived = "gifts_received"
)

func (s *Service) IncrementGiftsReceived(ctx context.Context, userID uint) error {
	return s.adjustCounter(ctx, userID, columnGiftsReceived, 1)
}

func (s *Service) IncrementGiftsGiven(ctx context.Context, userID uint) error {
	return s.adjustCounter(ctx, userID, columnGiftsGiven, 1)
}

// DecrementGiftsReceived never takes the counter below zero.
func (s *Service) DecrementGiftsReceived(ctx context.Context, userID uint) error {
	return s.adjustCounter(ctx, userID, columnGiftsReceived, -1)
}

// DecrementGiftsGiven never takes the counter below zero.
func (s *Service) DecrementGiftsGiven(ctx context.Context, userID uint) error {
	return s.adjustCounter(ctx, userID, columnGiftsGiven, -1)
}

// adjustCounter applies the change in SQL so concurrent adjustments never lose updates.
func (s *Service) adjustCounter(ctx context.Context, userID uint, column string, delta int) error {
	var expr clause.Expr
	if delta > 0 {
		expr = gorm.Expr(column+" + ?", delta)
	} else {
		expr = gorm.Expr("CASE WHEN "+column+" >= ? THEN "+column+" - ? ELSE 0 END", -delta, -delta)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).UpdateColumn(column, expr)
	if res.Error != nil {
		return fmt.Errorf("adjust %s for user %d: %w", column, userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("adjust %s for user %d: %w", column, userID, apperr.ErrUserNotFound)
	}
	return nil
}
