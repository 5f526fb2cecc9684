package wishlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"wishlist-bot/internal/apperr"
	"wishlist-bot/internal/models"
	"wishlist-bot/internal/testutil"
)

func boolPtr(b bool) *bool     { return &b }
func strPtr(s string) *string  { return &s }
func intPtr(i int) *int        { return &i }
func named(name string) Fields { return Fields{Name: strPtr(name)} }

func setup(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return NewService(db, testutil.Logger()), db
}

// defaults returns the ids of the owner's default wishlists.
func defaults(t *testing.T, db *gorm.DB, ownerID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, db.Model(&models.Wishlist{}).Where("user_id = ? AND is_default = ?", ownerID, true).Pluck("id", &ids).Error)
	return ids
}

func TestCreateFirstWishlistBecomesDefault(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	w1, err := svc.Create(ctx, owner.ID, named("W1"))
	require.NoError(t, err)
	assert.True(t, w1.IsDefault)
	assert.True(t, w1.IsPublic)

	w2, err := svc.Create(ctx, owner.ID, Fields{Name: strPtr("W2"), IsDefault: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, w2.IsDefault)

	assert.Equal(t, []uint{w1.ID}, defaults(t, db, owner.ID))
}

func TestCreateExplicitDefaultTakesFlag(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	_, err := svc.Create(ctx, owner.ID, named("W1"))
	require.NoError(t, err)
	w2, err := svc.Create(ctx, owner.ID, Fields{Name: strPtr("W2"), IsDefault: boolPtr(true)})
	require.NoError(t, err)

	assert.True(t, w2.IsDefault)
	assert.Equal(t, []uint{w2.ID}, defaults(t, db, owner.ID))
}

func TestCreateValidation(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	_, err := svc.Create(ctx, owner.ID, Fields{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, owner.ID, named("   "))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, 9999, named("Orphan"))
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestUpdateMovesDefault(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)
	other := testutil.CreateUser(t, db, 200)

	w1, err := svc.Create(ctx, owner.ID, named("W1"))
	require.NoError(t, err)
	w2, err := svc.Create(ctx, owner.ID, named("W2"))
	require.NoError(t, err)
	foreign, err := svc.Create(ctx, other.ID, named("Other"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, w2.ID, Fields{IsDefault: boolPtr(true), Description: strPtr("main")})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, "main", updated.Description)

	assert.Equal(t, []uint{w2.ID}, defaults(t, db, owner.ID))
	assert.Equal(t, []uint{foreign.ID}, defaults(t, db, other.ID))

	got, err := svc.Get(ctx, w1.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestUpdateClearingDefaultPromotesSibling(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	w1, err := svc.Create(ctx, owner.ID, Fields{Name: strPtr("W1"), Order: intPtr(0)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner.ID, Fields{Name: strPtr("W2"), Order: intPtr(5)})
	require.NoError(t, err)
	w3, err := svc.Create(ctx, owner.ID, Fields{Name: strPtr("W3"), Order: intPtr(1)})
	require.NoError(t, err)

	_, err = svc.Update(ctx, w1.ID, Fields{IsDefault: boolPtr(false)})
	require.NoError(t, err)

	assert.Equal(t, []uint{w3.ID}, defaults(t, db, owner.ID))
}

func TestUpdateCannotClearSoleDefault(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	w1, err := svc.Create(ctx, owner.ID, named("W1"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, w1.ID, Fields{IsDefault: boolPtr(false)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []uint{w1.ID}, defaults(t, db, owner.ID))

	_, err = svc.Update(ctx, 9999, Fields{Name: strPtr("x")})
	assert.ErrorIs(t, err, apperr.ErrWishlistNotFound)
}

func TestDeletePromotesNextInDisplayOrder(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	w1, err := svc.Create(ctx, owner.ID, Fields{Name: strPtr("W1"), Order: intPtr(0)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner.ID, Fields{Name: strPtr("W2"), Order: intPtr(3)})
	require.NoError(t, err)
	w3, err := svc.Create(ctx, owner.ID, Fields{Name: strPtr("W3"), Order: intPtr(2)})
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Wish{WishlistID: w1.ID, UserID: owner.ID, Title: "Gone", Currency: models.DefaultCurrency}).Error)

	require.NoError(t, svc.Delete(ctx, w1.ID))
	assert.Equal(t, []uint{w3.ID}, defaults(t, db, owner.ID))

	var wishes int64
	require.NoError(t, db.Model(&models.Wish{}).Where("wishlist_id = ?", w1.ID).Count(&wishes).Error)
	assert.Zero(t, wishes)

	assert.ErrorIs(t, svc.Delete(ctx, w1.ID), apperr.ErrWishlistNotFound)
}

func TestDeleteLastWishlistLeavesNoDefault(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	w1, err := svc.Create(ctx, owner.ID, named("W1"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, w1.ID))

	assert.Empty(t, defaults(t, db, owner.ID))
}

func TestGetCountsWishes(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, 100)

	w1, err := svc.Create(ctx, owner.ID, named("W1"))
	require.NoError(t, err)
	for _, title := range []string{"a", "b"} {
		require.NoError(t, db.Create(&models.Wish{WishlistID: w1.ID, UserID: owner.ID, Title: title, Currency: models.DefaultCurrency}).Error)
	}

	got, err := svc.Get(ctx, w1.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.WishesCount)
	assert.Equal(t, "W1", got.Name)

	def, err := svc.Default(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, w1.ID, def.ID)
}

func TestRepairDefaults(t *testing.T) {
	svc, db := setup(t)
	ctx := context.Background()
	broken := testutil.CreateUser(t, db, 100)
	healthy := testutil.CreateUser(t, db, 200)

	for i, name := range []string{"A", "B"} {
		require.NoError(t, db.Create(&models.Wishlist{UserID: broken.ID, Name: name, IsPublic: true, Order: i}).Error)
	}
	ok, err := svc.Create(ctx, healthy.ID, named("Fine"))
	require.NoError(t, err)

	repaired, err := svc.RepairDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Len(t, defaults(t, db, broken.ID), 1)
	assert.Equal(t, []uint{ok.ID}, defaults(t, db, healthy.ID))

	repaired, err = svc.RepairDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestSingleDefaultIndexRejectsSecondDefault(t *testing.T) {
	_, db := setup(t)
	owner := testutil.CreateUser(t, db, 100)

	require.NoError(t, db.Create(&models.Wishlist{UserID: owner.ID, Name: "A", IsPublic: true, IsDefault: true}).Error)
	err := db.Create(&models.Wishlist{UserID: owner.ID, Name: "B", IsPublic: true, IsDefault: true}).Error
	assert.Error(t, err)
}
