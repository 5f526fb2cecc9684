package identity

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/models"
)

// Subscribe makes followerID follow targetID. Repeating it is a no-op.
func (s *Service) Subscribe(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return apperr.Validation("user %d cannot subscribe to themselves", followerID)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUsers(tx, followerID, targetID); err != nil {
			return err
		}
		edge := models.Subscription{UserID: followerID, TargetID: targetID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&edge).Error
	})
	if err != nil {
		return fmt.Errorf("subscribe %d to %d: %w", followerID, targetID, err)
	}
	s.log.WithFields(logrus.Fields{"user_id": followerID, "target_id": targetID}).Debug("subscribed")
	return nil
}

// Unsubscribe removes the follow edge. Removing a missing edge is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, followerID, targetID uint) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND target_id = ?", followerID, targetID).
		Delete(&models.Subscription{}).Error
	if err != nil {
		return fmt.Errorf("unsubscribe %d from %d: %w", followerID, targetID, err)
	}
	return nil
}

// Subscriptions lists the users userID follows.
func (s *Service) Subscriptions(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followEdges(ctx, userID, "target_id", "user_id")
}

// Subscribers lists the users following userID.
func (s *Service) Subscribers(ctx context.Context, userID uint) ([]models.User, error) {
	return s.followEdges(ctx, userID, "user_id", "target_id")
}

func (s *Service) followEdges(ctx context.Context, userID uint, selectCol, whereCol string) ([]models.User, error) {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	sub := s.db.Model(&models.Subscription{}).Select(selectCol).Where(whereCol+" = ?", userID)
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN (?)", sub).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list follow edges of user %d: %w", userID, err)
	}
	return users, nil
}

// Invitees lists users whose referral points at userID.
func (s *Service) Invitees(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("invited_by_id = ?", userID).
		Order("registration_time ASC, id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list invitees of user %d: %w", userID, err)
	}
	return users, nil
}

func requireUsers(tx *gorm.DB, ids ...uint) error {
	for _, id := range ids {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("user %d: %w", id, apperr.ErrUserNotFound)
		}
	}
	return nil
}
