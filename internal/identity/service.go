// Package identity keeps User records keyed by Telegram identity: registration on
// first contact, referral linkage, profile edits, follow edges and gift counters.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/database"
	"wishlist-bot/internal/metrics"
	"wishlist-bot/internal/models"
)

// maxReferralDepth bounds the inviter chain walk used for cycle detection.
const maxReferralDepth = 64

// Profile carries optional profile fields; nil means "not supplied".
type Profile struct {
	FirstName  *string
	LastName   *string
	Username   *string
	PhotoURL   *string
	Language   *string
	ThemeColor *string
}

// ProfileUpdate extends Profile with the fields only editable after registration.
type ProfileUpdate struct {
	Profile
	BirthDate *time.Time
	Address   *string
	Hobbies   *string
}

type Registration struct {
	TelegramID int64
	Profile    Profile
	StartParam string
}

type Service struct {
	db    *gorm.DB
	cache Cache
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(db *gorm.DB, cache Cache, log logrus.FieldLogger) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{
		db:    db,
		cache: cache,
		log:   log.WithField("component", "identity"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a copy bound to tx so counter changes join the caller's transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	cp := *s
	cp.db = tx
	return &cp
}

// GetOrRegister returns the user for reg.TelegramID, creating it on first contact.
// Every call counts as a visit. A start parameter naming another registered user
// becomes the referral when none is set yet; bad parameters are ignored.
func (s *Service) GetOrRegister(ctx context.Context, reg Registration) (models.User, bool, error) {
	if reg.TelegramID <= 0 {
		return models.User{}, false, apperr.Validation("telegram_id must be a positive integer")
	}

	var (
		user    models.User
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		fresh := newUser(reg, now)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoNothing: true,
		}).Omit(clause.Associations).Create(&fresh)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1

		if err := database.ForUpdate(tx).Where("telegram_id = ?", reg.TelegramID).First(&user).Error; err != nil {
			return err
		}

		changes := map[string]any{}
		if !created {
			changes = profileChanges(&user, reg.Profile)
			changes["last_visit"] = now
			user.LastVisit = now
		}

		if inviterID, ok := s.resolveReferral(tx, &user, reg.StartParam); ok {
			changes["invited_by_id"] = inviterID
			user.InvitedByID = &inviterID
		}

		if len(changes) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(changes).Error
	})
	if err != nil {
		return models.User{}, false, fmt.Errorf("register telegram user %d: %w", reg.TelegramID, err)
	}

	s.cache.Set(ctx, user.TelegramID, user.ID)
	metrics.ObserveRegistration(created)
	s.log.WithFields(logrus.Fields{
		"telegram_id": user.TelegramID,
		"user_id":     user.ID,
		"created":     created,
	}).Info("user resolved")

	return user, created, nil
}

func newUser(reg Registration, now time.Time) models.User {
	u := models.User{
		TelegramID: reg.TelegramID,
		Language:   models.DefaultLanguage,
		ThemeColor: models.DefaultThemeColor,
		LastVisit:  now,
	}
	applyProfile(&u, reg.Profile)
	return u
}

func applyProfile(u *models.User, p Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.Username, p.Username)
	set(&u.PhotoURL, p.PhotoURL)
	if p.Language != nil && *p.Language != "" {
		u.Language = *p.Language
	}
	if p.ThemeColor != nil && *p.ThemeColor != "" {
		u.ThemeColor = *p.ThemeColor
	}
}

// profileChanges applies p to u and returns the column updates for fields that differ.
func profileChanges(u *models.User, p Profile) map[string]any {
	changes := map[string]any{}
	diff := func(column string, dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changes[column] = *src
		}
	}
	diff("first_name", &u.FirstName, p.FirstName)
	diff("last_name", &u.LastName, p.LastName)
	diff("username", &u.Username, p.Username)
	diff("photo_url", &u.PhotoURL, p.PhotoURL)
	diff("language", &u.Language, p.Language)
	diff("theme_color", &u.ThemeColor, p.ThemeColor)
	return changes
}

// resolveReferral returns the inviter id to link, if any. Failures are logged and
// treated as "no referral".
func (s *Service) resolveReferral(tx *gorm.DB, user *models.User, startParam string) (uint, bool) {
	startParam = strings.TrimSpace(startParam)
	if startParam == "" || user.InvitedByID != nil {
		return 0, false
	}
	log := s.log.WithFields(logrus.Fields{"telegram_id": user.TelegramID, "start_param": startParam})

	inviterTID, err := strconv.ParseInt(startParam, 10, 64)
	if err != nil {
		log.Debug("start_param is not a telegram id, skipping referral")
		return 0, false
	}
	if inviterTID == user.TelegramID {
		log.Debug("self invite ignored")
		return 0, false
	}

	var inviter models.User
	if err := tx.Where("telegram_id = ?", inviterTID).First(&inviter).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Warn("inviter lookup failed")
		}
		return 0, false
	}

	cyclic, err := s.invitedThrough(tx, inviter, user.ID)
	if err != nil {
		log.WithError(err).Warn("inviter chain lookup failed")
		return 0, false
	}
	if cyclic {
		log.Debug("referral would create a cycle, skipping")
		return 0, false
	}

	log.WithField("inviter_id", inviter.ID).Info("referral linked")
	return inviter.ID, true
}

// invitedThrough reports whether userID appears in the inviter chain starting at from.
func (s *Service) invitedThrough(tx *gorm.DB, from models.User, userID uint) (bool, error) {
	cur := from
	for depth := 0; depth < maxReferralDepth; depth++ {
		if cur.ID == userID {
			return true, nil
		}
		if cur.InvitedByID == nil {
			return false, nil
		}
		next := models.User{}
		if err := tx.Select("id", "invited_by_id").First(&next, *cur.InvitedByID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		cur = next
	}
	return false, nil
}

func (s *Service) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, notFound(err, "user %d", id)
	}
	return user, nil
}

func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return models.User{}, notFound(err, "telegram user %d", telegramID)
	}
	s.cache.Set(ctx, user.TelegramID, user.ID)
	return user, nil
}

// ResolveTelegramID maps a Telegram identity to the internal user id.
func (s *Service) ResolveTelegramID(ctx context.Context, telegramID int64) (uint, error) {
	if id, ok := s.cache.Get(ctx, telegramID); ok {
		return id, nil
	}
	user, err := s.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// List returns users newest first, optionally narrowed to one telegram id.
func (s *Service) List(ctx context.Context, telegramID *int64) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("registration_time DESC, id DESC")
	if telegramID != nil {
		q = q.Where("telegram_id = ?", *telegramID)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&user, id).Error; err != nil {
			return notFound(err, "user %d", id)
		}
		changes := profileChanges(&user, upd.Profile)
		if upd.BirthDate != nil {
			bd := upd.BirthDate.UTC().Truncate(24 * time.Hour)
			user.BirthDate = &bd
			changes["birth_date"] = bd
		}
		if upd.Address != nil {
			user.Address = *upd.Address
			changes["address"] = *upd.Address
		}
		if upd.Hobbies != nil {
			user.Hobbies = *upd.Hobbies
			changes["hobbies"] = *upd.Hobbies
		}
		if len(changes) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Updates(changes).Error
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Delete removes a user and everything it owns. References held by other users
// (invited_by, reserved_by, gifted_by) are cleared, never cascaded.
func (s *Service) Delete(ctx context.Context, id uint) error {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).First(&user, id).Error; err != nil {
			return notFound(err, "user %d", id)
		}
		steps := []*gorm.DB{
			tx.Model(&models.User{}).Where("invited_by_id = ?", id).Update("invited_by_id", nil),
			tx.Model(&models.Wish{}).Where("reserved_by_id = ?", id).UpdateColumn("reserved_by_id", nil),
			tx.Model(&models.Wish{}).Where("gifted_by_id = ?", id).UpdateColumn("gifted_by_id", nil),
			tx.Where("user_id = ?", id).Delete(&models.Wish{}),
			tx.Where("user_id = ?", id).Delete(&models.Wishlist{}),
			tx.Where("user_id = ? OR target_id = ?", id, id).Delete(&models.Subscription{}),
			tx.Delete(&models.User{}, id),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.cache.Delete(ctx, user.TelegramID)
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperr.ErrUserNotFound)
	}
	return err
}
