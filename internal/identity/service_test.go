package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/models"
	"wishlist-bot/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(db, nil, testutil.Logger()), db
}

func strPtr(s string) *string { return &s }

func TestGetOrRegisterCreatesWithDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, created, err := svc.GetOrRegister(ctx, Registration{
		TelegramID: 1001,
		Profile:    Profile{FirstName: strPtr("Anna"), Username: strPtr("anna")},
	})
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "Anna", user.FirstName)
	assert.Equal(t, "anna", user.Username)
	assert.Equal(t, models.DefaultLanguage, user.Language)
	assert.Equal(t, models.DefaultThemeColor, user.ThemeColor)
	assert.Zero(t, user.GiftsGiven)
	assert.Zero(t, user.GiftsReceived)
	assert.Nil(t, user.InvitedByID)
}

func TestGetOrRegisterUpdatesExistingUser(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	first, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 1001, Profile: Profile{FirstName: strPtr("Anna")}})
	require.NoError(t, err)

	later := time.Now().UTC().Add(time.Hour)
	svc.now = func() time.Time { return later }

	again, created, err := svc.GetOrRegister(ctx, Registration{
		TelegramID: 1001,
		Profile:    Profile{FirstName: strPtr("Anya"), Language: strPtr("en")},
	})
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	stored := testutil.Reload(t, db, first.ID)
	assert.Equal(t, "Anya", stored.FirstName)
	assert.Equal(t, "en", stored.Language)
	assert.WithinDuration(t, later, stored.LastVisit, time.Second)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrRegisterRejectsBadIdentity(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.GetOrRegister(context.Background(), Registration{TelegramID: 0})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetOrRegisterReferral(t *testing.T) {
	ctx := context.Background()

	t.Run("links existing inviter", func(t *testing.T) {
		svc, _ := newTestService(t)
		inviter, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 1})
		require.NoError(t, err)

		invitee, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 2, StartParam: "1"})
		require.NoError(t, err)
		require.NotNil(t, invitee.InvitedByID)
		assert.Equal(t, inviter.ID, *invitee.InvitedByID)

		invitees, err := svc.Invitees(ctx, inviter.ID)
		require.NoError(t, err)
		require.Len(t, invitees, 1)
		assert.Equal(t, invitee.ID, invitees[0].ID)
	})

	t.Run("ignores unusable parameters", func(t *testing.T) {
		svc, _ := newTestService(t)
		for _, param := range []string{"abc", "999", "3", "", "  "} {
			user, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 3, StartParam: param})
			require.NoError(t, err, param)
			assert.Nil(t, user.InvitedByID, param)
		}
	})

	t.Run("never replaces an existing referral", func(t *testing.T) {
		svc, _ := newTestService(t)
		a, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 1})
		require.NoError(t, err)
		_, _, err = svc.GetOrRegister(ctx, Registration{TelegramID: 2})
		require.NoError(t, err)

		_, _, err = svc.GetOrRegister(ctx, Registration{TelegramID: 3, StartParam: "1"})
		require.NoError(t, err)
		user, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 3, StartParam: "2"})
		require.NoError(t, err)

		require.NotNil(t, user.InvitedByID)
		assert.Equal(t, a.ID, *user.InvitedByID)
	})

	t.Run("skips cycles", func(t *testing.T) {
		svc, _ := newTestService(t)
		a, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 1})
		require.NoError(t, err)
		_, _, err = svc.GetOrRegister(ctx, Registration{TelegramID: 2, StartParam: "1"})
		require.NoError(t, err)

		again, _, err := svc.GetOrRegister(ctx, Registration{TelegramID: 1, StartParam: "2"})
		require.NoError(t, err)
		assert.Equal(t, a.ID, again.ID)
		assert.Nil(t, again.InvitedByID)
	})
}

func TestCountersFloorAtZero(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, 10)

	require.NoError(t, svc.IncrementGiftsGiven(ctx, user.ID))
	require.NoError(t, svc.IncrementGiftsReceived(ctx, user.ID))
	require.NoError(t, svc.IncrementGiftsReceived(ctx, user.ID))
	require.NoError(t, svc.DecrementGiftsGiven(ctx, user.ID))
	require.NoError(t, svc.DecrementGiftsGiven(ctx, user.ID))

	stored := testutil.Reload(t, db, user.ID)
	assert.Equal(t, 0, stored.GiftsGiven)
	assert.Equal(t, 2, stored.GiftsReceived)

	assert.ErrorIs(t, svc.IncrementGiftsGiven(ctx, 9999), apperr.ErrNotFound)
}

func TestSubscriptions(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, 1)
	b := testutil.CreateUser(t, db, 2)

	require.NoError(t, svc.Subscribe(ctx, a.ID, b.ID))
	require.NoError(t, svc.Subscribe(ctx, a.ID, b.ID))
	assert.ErrorIs(t, svc.Subscribe(ctx, a.ID, a.ID), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Subscribe(ctx, a.ID, 9999), apperr.ErrNotFound)

	following, err := svc.Subscriptions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, b.ID, following[0].ID)

	followers, err := svc.Subscribers(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)

	require.NoError(t, svc.Unsubscribe(ctx, a.ID, b.ID))
	followers, err = svc.Subscribers(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestUpdateProfile(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, 1)

	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{
		Profile:   Profile{ThemeColor: strPtr("dark")},
		BirthDate: &birth,
		Hobbies:   strPtr("climbing"),
	})
	require.NoError(t, err)
	assert.Equal(t, "dark", updated.ThemeColor)
	assert.Equal(t, "climbing", updated.Hobbies)

	stored := testutil.Reload(t, db, user.ID)
	require.NotNil(t, stored.BirthDate)
	assert.Equal(t, "1990-05-17", stored.BirthDate.Format("2006-01-02"))

	_, err = svc.UpdateProfile(ctx, 9999, ProfileUpdate{})
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestDeleteClearsWeakReferences(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 1)
	friend := testutil.CreateUser(t, db, 2)

	list := models.Wishlist{UserID: owner.ID, Name: "Birthday", IsPublic: true, IsDefault: true}
	require.NoError(t, db.Create(&list).Error)
	wish := models.Wish{
		WishlistID:   list.ID,
		UserID:       owner.ID,
		Title:        "Book",
		Status:       models.WishReserved,
		ReservedByID: &friend.ID,
		Currency:     models.DefaultCurrency,
	}
	require.NoError(t, db.Create(&wish).Error)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", owner.ID).Update("invited_by_id", friend.ID).Error)
	require.NoError(t, svc.Subscribe(ctx, owner.ID, friend.ID))

	require.NoError(t, svc.Delete(ctx, friend.ID))

	stored := testutil.Reload(t, db, owner.ID)
	assert.Nil(t, stored.InvitedByID)

	var reloaded models.Wish
	require.NoError(t, db.First(&reloaded, wish.ID).Error)
	assert.Nil(t, reloaded.ReservedByID)

	_, err := svc.GetByID(ctx, friend.ID)
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)

	following, err := svc.Subscriptions(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, following)
}

func TestDeleteRemovesOwnedData(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 1)

	list := models.Wishlist{UserID: owner.ID, Name: "Main", IsPublic: true, IsDefault: true}
	require.NoError(t, db.Create(&list).Error)
	require.NoError(t, db.Create(&models.Wish{WishlistID: list.ID, UserID: owner.ID, Title: "Lamp", Currency: models.DefaultCurrency}).Error)

	require.NoError(t, svc.Delete(ctx, owner.ID))

	var wishes, lists int64
	require.NoError(t, db.Model(&models.Wish{}).Count(&wishes).Error)
	require.NoError(t, db.Model(&models.Wishlist{}).Count(&lists).Error)
	assert.Zero(t, wishes)
	assert.Zero(t, lists)

	assert.ErrorIs(t, svc.Delete(ctx, owner.ID), apperr.ErrUserNotFound)
}

func TestListFiltersByTelegramID(t *testing.T) {
	svc, db := newTestService(t)
	testutil.CreateUser(t, db, 1)
	testutil.CreateUser(t, db, 2)

	all, err := svc.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tid := int64(2)
	one, err := svc.List(context.Background(), &tid)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.EqualValues(t, 2, one[0].TelegramID)
}
