// Package wish owns wishes: field edits, the status lifecycle and the gift
// counters it drives on the owner and the gifter.
package wish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/database"
	"wishlist-bot/internal/identity"
	"wishlist-bot/internal/models"
	"wishlist-bot/internal/wishlist"
)

const maxTitleLength = 200

// maxPrice is the first value that no longer fits numeric(10,2).
var maxPrice = decimal.New(1, 8)

// UserRef is a nullable user reference in a partial update. A nil ID clears it.
type UserRef struct {
	ID *uint
}

// Fields is a partial wish; nil fields are left untouched.
type Fields struct {
	WishlistID  *uint
	UserID      *uint
	Title       *string
	Description *string
	Link        *string
	ImageURL    *string
	// Price with Valid=false clears the price.
	Price      *decimal.NullDecimal
	Currency   *string
	Order      *int
	Status     *models.WishStatus
	ReservedBy *UserRef
}

type Service struct {
	db        *gorm.DB
	users     *identity.Service
	wishlists *wishlist.Service
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(db *gorm.DB, users *identity.Service, wishlists *wishlist.Service, log logrus.FieldLogger) *Service {
	return &Service{
		db:        db,
		users:     users,
		wishlists: wishlists,
		log:       log.WithField("component", "wish"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a wish. Without a wishlist the wish goes to the owner's default
// wishlist; the owner is always taken from the wishlist.
func (s *Service) Create(ctx context.Context, f Fields) (models.Wish, error) {
	title, err := validTitle(f.Title)
	if err != nil {
		return models.Wish{}, err
	}
	w := models.Wish{Title: title, Currency: models.DefaultCurrency, Status: models.WishActive}
	if err := applyPlain(&w, f, map[string]any{}); err != nil {
		return models.Wish{}, err
	}

	if f.Status != nil {
		switch *f.Status {
		case models.WishActive:
		case models.WishReserved:
			now := s.now()
			w.Status = models.WishReserved
			w.ReservedAt = &now
		case models.WishFulfilled:
			return models.Wish{}, apperr.Transition("a wish cannot be created fulfilled")
		default:
			return models.Wish{}, apperr.Validation("unknown status %q", *f.Status)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wl, err := s.resolveWishlist(ctx, tx, f)
		if err != nil {
			return err
		}
		w.WishlistID = wl.ID
		w.UserID = wl.UserID

		if f.ReservedBy != nil && f.ReservedBy.ID != nil {
			if err := requireUser(tx, *f.ReservedBy.ID); err != nil {
				return err
			}
			w.ReservedByID = f.ReservedBy.ID
		}
		return tx.Omit(clause.Associations).Create(&w).Error
	})
	if err != nil {
		return models.Wish{}, fmt.Errorf("create wish: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"wish_id":     w.ID,
		"wishlist_id": w.WishlistID,
		"user_id":     w.UserID,
	}).Info("wish created")
	return w, nil
}

func (s *Service) resolveWishlist(ctx context.Context, tx *gorm.DB, f Fields) (models.Wishlist, error) {
	switch {
	case f.WishlistID != nil:
		var wl models.Wishlist
		if err := tx.First(&wl, *f.WishlistID).Error; err != nil {
			return models.Wishlist{}, wishlistNotFound(err, *f.WishlistID)
		}
		if f.UserID != nil && *f.UserID != wl.UserID {
			return models.Wishlist{}, fmt.Errorf("%w: wishlist %d belongs to user %d, not %d",
				apperr.ErrOwnershipViolation, wl.ID, wl.UserID, *f.UserID)
		}
		return wl, nil
	case f.UserID != nil:
		if err := requireUser(tx, *f.UserID); err != nil {
			return models.Wishlist{}, err
		}
		wl, err := s.wishlists.WithTx(tx).Default(ctx, *f.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Wishlist{}, apperr.Validation("user %d has no wishlist to put the wish in", *f.UserID)
		}
		return wl, err
	default:
		return models.Wishlist{}, apperr.Validation("either wishlist or user is required")
	}
}

// Update is the generic edit path. Status may move between active and reserved
// here; fulfilled is only entered and left through Fulfill and Unfulfill.
func (s *Service) Update(ctx context.Context, id uint, f Fields) (models.Wish, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWish(tx, id)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if f.Title != nil {
			title, err := validTitle(f.Title)
			if err != nil {
				return err
			}
			changes["title"] = title
		}
		if err := applyPlain(&w, f, changes); err != nil {
			return err
		}

		if f.WishlistID != nil && *f.WishlistID != w.WishlistID {
			var target models.Wishlist
			if err := tx.First(&target, *f.WishlistID).Error; err != nil {
				return wishlistNotFound(err, *f.WishlistID)
			}
			if target.UserID != w.UserID {
				return fmt.Errorf("%w: wishlist %d belongs to user %d, wish %d to user %d",
					apperr.ErrOwnershipViolation, target.ID, target.UserID, w.ID, w.UserID)
			}
			changes["wishlist_id"] = target.ID
		}
		if f.UserID != nil && *f.UserID != w.UserID {
			return fmt.Errorf("%w: wish %d belongs to user %d", apperr.ErrOwnershipViolation, w.ID, w.UserID)
		}

		if f.ReservedBy != nil && f.ReservedBy.ID != nil {
			if err := requireUser(tx, *f.ReservedBy.ID); err != nil {
				return err
			}
		}
		if err := s.statusChanges(w, f, changes); err != nil {
			return err
		}

		if len(changes) == 0 {
			return nil
		}
		return tx.Model(&w).Updates(changes).Error
	})
	if err != nil {
		return models.Wish{}, fmt.Errorf("update wish %d: %w", id, err)
	}

	s.log.WithField("wish_id", id).Info("wish updated")
	return s.Get(ctx, id)
}

// statusChanges derives the reservation columns for the generic update path.
func (s *Service) statusChanges(w models.Wish, f Fields, changes map[string]any) error {
	to := w.Status
	if f.Status != nil {
		to = *f.Status
	}
	if !to.Valid() {
		return apperr.Validation("unknown status %q", to)
	}

	if to != w.Status {
		if to == models.WishFulfilled || w.Status == models.WishFulfilled {
			return apperr.Transition("wish %d: %s -> %s must go through fulfill/unfulfill", w.ID, w.Status, to)
		}
		changes["status"] = to
		s.log.WithFields(logrus.Fields{"wish_id": w.ID, "from": w.Status, "to": to}).Info("wish status changed")
	}

	switch {
	case to == models.WishReserved && w.Status != models.WishReserved:
		changes["reserved_at"] = s.now()
	case to != models.WishReserved && w.Status == models.WishReserved:
		changes["reserved_at"] = nil
		if f.ReservedBy == nil {
			changes["reserved_by_id"] = nil
		}
	}
	if f.ReservedBy != nil {
		changes["reserved_by_id"] = f.ReservedBy.ID
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (models.Wish, error) {
	var w models.Wish
	if err := s.db.WithContext(ctx).First(&w, id).Error; err != nil {
		return models.Wish{}, wishNotFound(err, id)
	}
	return w, nil
}

// Delete removes a wish whatever its status; counters are left as they are.
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Wish{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete wish %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete wish %d: %w", id, apperr.ErrWishNotFound)
	}
	s.log.WithField("wish_id", id).Info("wish deleted")
	return nil
}

// applyPlain copies the plain fields of f into w and changes.
func applyPlain(w *models.Wish, f Fields, changes map[string]any) error {
	if f.Description != nil {
		w.Description = *f.Description
		changes["description"] = *f.Description
	}
	if f.Link != nil {
		w.Link = *f.Link
		changes["link"] = *f.Link
	}
	if f.ImageURL != nil {
		w.ImageURL = *f.ImageURL
		changes["image_url"] = *f.ImageURL
	}
	if f.Price != nil {
		price, err := NormalizePrice(*f.Price)
		if err != nil {
			return err
		}
		w.Price = price
		changes["price"] = price
	}
	if f.Currency != nil {
		currency := strings.TrimSpace(*f.Currency)
		if currency == "" {
			currency = models.DefaultCurrency
		}
		if utf8.RuneCountInString(currency) > 10 {
			return apperr.Validation("currency must be at most 10 characters")
		}
		w.Currency = currency
		changes["currency"] = currency
	}
	if f.Order != nil {
		w.Order = *f.Order
		changes["order"] = *f.Order
	}
	return nil
}

// NormalizePrice rounds to two fractional digits and rejects values that do not
// fit numeric(10,2) or are negative.
func NormalizePrice(p decimal.NullDecimal) (decimal.NullDecimal, error) {
	if !p.Valid {
		return p, nil
	}
	if p.Decimal.IsNegative() {
		return decimal.NullDecimal{}, apperr.Validation("price must not be negative")
	}
	rounded := p.Decimal.Round(2)
	if !rounded.LessThan(maxPrice) {
		return decimal.NullDecimal{}, apperr.Validation("price must have at most 8 integer digits")
	}
	return decimal.NullDecimal{Decimal: rounded, Valid: true}, nil
}

func validTitle(title *string) (string, error) {
	if title == nil {
		return "", apperr.Validation("title is required")
	}
	trimmed := strings.TrimSpace(*title)
	if trimmed == "" {
		return "", apperr.Validation("title must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxTitleLength {
		return "", apperr.Validation("title must be at most %d characters", maxTitleLength)
	}
	return trimmed, nil
}

func lockWish(tx *gorm.DB, id uint) (models.Wish, error) {
	var w models.Wish
	if err := database.ForUpdate(tx).First(&w, id).Error; err != nil {
		return models.Wish{}, wishNotFound(err, id)
	}
	return w, nil
}

func requireUser(tx *gorm.DB, id uint) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, apperr.ErrUserNotFound)
	}
	return nil
}

func wishNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("wish %d: %w", id, apperr.ErrWishNotFound)
	}
	return err
}

func wishlistNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("wishlist %d: %w", id, apperr.ErrWishlistNotFound)
	}
	return err
}
