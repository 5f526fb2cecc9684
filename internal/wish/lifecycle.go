package wish

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/metrics"
	"wishlist-bot/internal/models"
)

// Reserve claims an active wish. reserverID may be nil for an anonymous claim.
func (s *Service) Reserve(ctx context.Context, id uint, reserverID *uint) (models.Wish, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWish(tx, id)
		if err != nil {
			return err
		}
		if w.Status != models.WishActive {
			return apperr.Transition("wish %d is %s, only active wishes can be reserved", id, w.Status)
		}

		changes := map[string]any{
			"status":      models.WishReserved,
			"reserved_at": s.now(),
		}
		if reserverID != nil {
			if err := requireUser(tx, *reserverID); err != nil {
				return err
			}
			changes["reserved_by_id"] = *reserverID
		}
		return tx.Model(&w).Updates(changes).Error
	})
	s.observe("reserve", err)
	if err != nil {
		return models.Wish{}, fmt.Errorf("reserve wish %d: %w", id, err)
	}

	s.log.WithFields(logrus.Fields{"wish_id": id, "reserved_by": logID(reserverID)}).Info("wish reserved")
	return s.Get(ctx, id)
}

// Fulfill marks the wish as gifted. Without an explicit gifter an already
// fulfilled wish keeps its gifter, otherwise the current reserver is credited.
// Counters move only when the wish enters fulfilled; fulfilling again with a
// different gifter moves gifts_given to the new one.
func (s *Service) Fulfill(ctx context.Context, id uint, gifterID *uint) (models.Wish, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWish(tx, id)
		if err != nil {
			return err
		}

		gifter := w.ReservedByID
		if w.Status == models.WishFulfilled && w.GiftedByID != nil {
			gifter = w.GiftedByID
		}
		if gifterID != nil {
			if err := requireUser(tx, *gifterID); err != nil {
				return err
			}
			gifter = gifterID
		}

		users := s.users.WithTx(tx)
		if w.Status != models.WishFulfilled {
			if err := users.IncrementGiftsReceived(ctx, w.UserID); err != nil {
				return err
			}
			if gifter != nil {
				if err := users.IncrementGiftsGiven(ctx, *gifter); err != nil {
					return err
				}
			}
		} else if !sameUser(w.GiftedByID, gifter) {
			if w.GiftedByID != nil {
				if err := users.DecrementGiftsGiven(ctx, *w.GiftedByID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
					return err
				}
			}
			if gifter != nil {
				if err := users.IncrementGiftsGiven(ctx, *gifter); err != nil {
					return err
				}
			}
		}

		return tx.Model(&w).Updates(map[string]any{
			"status":       models.WishFulfilled,
			"gifted_by_id": gifter,
			"gifted_at":    s.now(),
		}).Error
	})
	s.observe("fulfill", err)
	if err != nil {
		return models.Wish{}, fmt.Errorf("fulfill wish %d: %w", id, err)
	}

	s.log.WithFields(logrus.Fields{"wish_id": id, "gifted_by": logID(gifterID)}).Info("wish fulfilled")
	return s.Get(ctx, id)
}

// Unfulfill returns a fulfilled wish to active and takes back the counters.
// Reservation fields are kept.
func (s *Service) Unfulfill(ctx context.Context, id uint) (models.Wish, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWish(tx, id)
		if err != nil {
			return err
		}
		if w.Status != models.WishFulfilled {
			return apperr.Transition("wish %d is %s, only fulfilled wishes can be unfulfilled", id, w.Status)
		}

		users := s.users.WithTx(tx)
		if err := users.DecrementGiftsReceived(ctx, w.UserID); err != nil {
			return err
		}
		if w.GiftedByID != nil {
			if err := users.DecrementGiftsGiven(ctx, *w.GiftedByID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return err
			}
		}

		return tx.Model(&w).Updates(map[string]any{
			"status":       models.WishActive,
			"gifted_by_id": nil,
			"gifted_at":    nil,
		}).Error
	})
	s.observe("unfulfill", err)
	if err != nil {
		return models.Wish{}, fmt.Errorf("unfulfill wish %d: %w", id, err)
	}

	s.log.WithField("wish_id", id).Info("wish unfulfilled")
	return s.Get(ctx, id)
}

// Move puts the wish into another wishlist of the same owner.
func (s *Service) Move(ctx context.Context, id, targetWishlistID uint) (models.Wish, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWish(tx, id)
		if err != nil {
			return err
		}
		var target models.Wishlist
		if err := tx.First(&target, targetWishlistID).Error; err != nil {
			return wishlistNotFound(err, targetWishlistID)
		}
		if target.UserID != w.UserID {
			return fmt.Errorf("%w: wishlist %d belongs to user %d, wish %d to user %d",
				apperr.ErrOwnershipMismatch, target.ID, target.UserID, w.ID, w.UserID)
		}
		if target.ID == w.WishlistID {
			return nil
		}
		return tx.Model(&w).Update("wishlist_id", target.ID).Error
	})
	s.observe("move", err)
	if err != nil {
		return models.Wish{}, fmt.Errorf("move wish %d: %w", id, err)
	}

	s.log.WithFields(logrus.Fields{"wish_id": id, "wishlist_id": targetWishlistID}).Info("wish moved")
	return s.Get(ctx, id)
}

func (s *Service) observe(operation string, err error) {
	metrics.ObserveTransition(operation, resultLabel(err))
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, apperr.ErrOwnershipMismatch), errors.Is(err, apperr.ErrOwnershipViolation):
		return "ownership"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func sameUser(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// logID renders an optional id for log fields.
func logID(id *uint) any {
	if id == nil {
		return nil
	}
	return *id
}
