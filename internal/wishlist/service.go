// Package wishlist manages wishlists and keeps exactly one default wishlist per
// owner that has any.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/database"
	"wishlist-bot/internal/metrics"
	"wishlist-bot/internal/models"
)

const maxNameLength = 200

// Fields is a partial wishlist; nil fields are left untouched.
type Fields struct {
	Name        *string
	Description *string
	Order       *int
	IsPublic    *bool
	IsDefault   *bool
}

type Service struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewService(db *gorm.DB, log logrus.FieldLogger) *Service {
	return &Service{db: db, log: log.WithField("component", "wishlist")}
}

func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.db = tx
	return &cp
}

// WithWishesCount selects wishlists together with the number of wishes in each.
func WithWishesCount(db *gorm.DB) *gorm.DB {
	return db.Select("wishlists.*, (SELECT COUNT(*) FROM wishes WHERE wishes.wishlist_id = wishlists.id) AS wishes_count")
}

// Create adds a wishlist for ownerID. An explicit default takes the flag from the
// siblings; otherwise only an owner's first wishlist becomes default.
func (s *Service) Create(ctx context.Context, ownerID uint, f Fields) (models.Wishlist, error) {
	name, err := validName(f.Name)
	if err != nil {
		return models.Wishlist{}, err
	}

	wl := models.Wishlist{UserID: ownerID, Name: name, IsPublic: true}
	if f.Description != nil {
		wl.Description = *f.Description
	}
	if f.Order != nil {
		wl.Order = *f.Order
	}
	if f.IsPublic != nil {
		wl.IsPublic = *f.IsPublic
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, ownerID); err != nil {
			return err
		}

		switch {
		case f.IsDefault != nil && *f.IsDefault:
			if err := clearDefault(tx, ownerID, 0); err != nil {
				return err
			}
			wl.IsDefault = true
		default:
			var existing int64
			if err := tx.Model(&models.Wishlist{}).Where("user_id = ?", ownerID).Count(&existing).Error; err != nil {
				return err
			}
			wl.IsDefault = existing == 0
		}

		return tx.Omit("User").Create(&wl).Error
	})
	if err != nil {
		return models.Wishlist{}, fmt.Errorf("create wishlist for user %d: %w", ownerID, err)
	}

	s.log.WithFields(logrus.Fields{
		"wishlist_id": wl.ID,
		"user_id":     ownerID,
		"is_default":  wl.IsDefault,
	}).Info("wishlist created")
	return wl, nil
}

// Update applies f. Setting is_default moves the flag from the siblings; clearing it
// on the current default hands the flag to the first sibling in display order.
func (s *Service) Update(ctx context.Context, id uint, f Fields) (models.Wishlist, error) {
	var wl models.Wishlist
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&wl, id).Error; err != nil {
			return notFound(err, id)
		}
		if err := lockOwner(tx, wl.UserID); err != nil {
			return err
		}

		changes := map[string]any{}
		if f.Name != nil {
			name, err := validName(f.Name)
			if err != nil {
				return err
			}
			wl.Name = name
			changes["name"] = name
		}
		if f.Description != nil {
			wl.Description = *f.Description
			changes["description"] = *f.Description
		}
		if f.Order != nil {
			wl.Order = *f.Order
			changes["order"] = *f.Order
		}
		if f.IsPublic != nil {
			wl.IsPublic = *f.IsPublic
			changes["is_public"] = *f.IsPublic
		}

		if f.IsDefault != nil && *f.IsDefault != wl.IsDefault {
			if *f.IsDefault {
				if err := clearDefault(tx, wl.UserID, wl.ID); err != nil {
					return err
				}
			} else {
				if err := tx.Model(&models.Wishlist{}).Where("id = ?", wl.ID).Update("is_default", false).Error; err != nil {
					return err
				}
				promoted, err := promoteFirst(tx, wl.UserID, wl.ID)
				if err != nil {
					return err
				}
				if promoted == 0 {
					return apperr.Validation("wishlist %d is the only wishlist of user %d and must stay default", wl.ID, wl.UserID)
				}
			}
			wl.IsDefault = *f.IsDefault
			changes["is_default"] = *f.IsDefault
		}

		if len(changes) == 0 {
			return nil
		}
		return tx.Model(&wl).Updates(changes).Error
	})
	if err != nil {
		return models.Wishlist{}, fmt.Errorf("update wishlist %d: %w", id, err)
	}

	s.log.WithFields(logrus.Fields{"wishlist_id": wl.ID, "user_id": wl.UserID}).Info("wishlist updated")
	return wl, nil
}

// Delete removes the wishlist and its wishes. A deleted default is replaced by the
// first remaining wishlist in display order.
func (s *Service) Delete(ctx context.Context, id uint) error {
	var (
		wl       models.Wishlist
		promoted uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&wl, id).Error; err != nil {
			return notFound(err, id)
		}
		if err := lockOwner(tx, wl.UserID); err != nil {
			return err
		}
		if err := tx.Where("wishlist_id = ?", id).Delete(&models.Wish{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Wishlist{}, id).Error; err != nil {
			return err
		}
		if !wl.IsDefault {
			return nil
		}
		var err error
		promoted, err = promoteFirst(tx, wl.UserID, 0)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete wishlist %d: %w", id, err)
	}

	s.log.WithFields(logrus.Fields{
		"wishlist_id": id,
		"user_id":     wl.UserID,
		"promoted":    promoted,
	}).Info("wishlist deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (models.Wishlist, error) {
	var wl models.Wishlist
	if err := s.db.WithContext(ctx).Scopes(WithWishesCount).First(&wl, id).Error; err != nil {
		return models.Wishlist{}, notFound(err, id)
	}
	return wl, nil
}

// Default returns the owner's default wishlist.
func (s *Service) Default(ctx context.Context, ownerID uint) (models.Wishlist, error) {
	var wl models.Wishlist
	err := s.db.WithContext(ctx).Where("user_id = ? AND is_default = ?", ownerID, true).First(&wl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Wishlist{}, fmt.Errorf("default wishlist of user %d: %w", ownerID, apperr.ErrWishlistNotFound)
		}
		return models.Wishlist{}, err
	}
	return wl, nil
}

// RepairDefaults promotes a default for every owner left without one and returns
// how many owners were repaired.
func (s *Service) RepairDefaults(ctx context.Context) (int, error) {
	var owners []uint
	err := s.db.WithContext(ctx).Model(&models.Wishlist{}).
		Select("user_id").
		Group("user_id").
		Having("SUM(CASE WHEN is_default THEN 1 ELSE 0 END) = 0").
		Pluck("user_id", &owners).Error
	if err != nil {
		return 0, fmt.Errorf("find owners without default: %w", err)
	}

	repaired := 0
	for _, ownerID := range owners {
		var promoted uint
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockOwner(tx, ownerID); err != nil {
				return err
			}
			var defaults int64
			if err := tx.Model(&models.Wishlist{}).Where("user_id = ? AND is_default = ?", ownerID, true).Count(&defaults).Error; err != nil {
				return err
			}
			if defaults > 0 {
				return nil
			}
			var err error
			promoted, err = promoteFirst(tx, ownerID, 0)
			return err
		})
		if err != nil {
			s.log.WithError(err).WithField("user_id", ownerID).Error("default repair failed")
			continue
		}
		if promoted != 0 {
			repaired++
			s.log.WithFields(logrus.Fields{"user_id": ownerID, "wishlist_id": promoted}).Warn("default wishlist repaired")
		}
	}

	metrics.ObserveDefaultRepairs(repaired)
	return repaired, nil
}

// lockOwner serialises default-flag changes per owner.
func lockOwner(tx *gorm.DB, ownerID uint) error {
	var owner models.User
	if err := database.ForUpdate(tx).Select("id").First(&owner, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %d: %w", ownerID, apperr.ErrUserNotFound)
		}
		return err
	}
	return nil
}

// clearDefault drops the flag from every wishlist of ownerID except keepID.
func clearDefault(tx *gorm.DB, ownerID, keepID uint) error {
	return tx.Model(&models.Wishlist{}).
		Where("user_id = ? AND id <> ? AND is_default = ?", ownerID, keepID, true).
		Update("is_default", false).Error
}

// promoteFirst makes the first wishlist of ownerID in display order (skipping
// excludeID) the default and returns its id, or 0 if there is none.
func promoteFirst(tx *gorm.DB, ownerID, excludeID uint) (uint, error) {
	var next models.Wishlist
	err := tx.Where("user_id = ? AND id <> ?", ownerID, excludeID).Order(models.DisplayOrder).First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Model(&models.Wishlist{}).Where("id = ?", next.ID).Update("is_default", true).Error; err != nil {
		return 0, err
	}
	return next.ID, nil
}

func validName(name *string) (string, error) {
	if name == nil {
		return "", apperr.Validation("name is required")
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return "", apperr.Validation("name must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", apperr.Validation("name must be at most %d characters", maxNameLength)
	}
	return trimmed, nil
}

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("wishlist %d: %w", id, apperr.ErrWishlistNotFound)
	}
	return err
}
