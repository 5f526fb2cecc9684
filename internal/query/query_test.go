package query

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

type seed struct {
	owner, friend models.User
	main, extra   models.Wishlist
	wishes        []models.Wish
}

func seedData(t *testing.T, db *gorm.DB) seed {
	t.Helper()
	s := seed{
		owner:  testutil.CreateUser(t, db, 100),
		friend: testutil.CreateUser(t, db, 200),
	}
	s.main = models.Wishlist{UserID: s.owner.ID, Name: "Main", IsPublic: true, IsDefault: true}
	s.extra = models.Wishlist{UserID: s.owner.ID, Name: "Extra", IsPublic: false, Order: 1}
	require.NoError(t, db.Create(&s.main).Error)
	require.NoError(t, db.Create(&s.extra).Error)

	rows := []models.Wish{
		{WishlistID: s.main.ID, UserID: s.owner.ID, Title: "second", Order: 2, Status: models.WishActive},
		{WishlistID: s.main.ID, UserID: s.owner.ID, Title: "first", Order: 1, Status: models.WishReserved, ReservedByID: &s.friend.ID},
		{WishlistID: s.extra.ID, UserID: s.owner.ID, Title: "gifted", Order: 0, Status: models.WishFulfilled, GiftedByID: &s.friend.ID},
	}
	for i := range rows {
		rows[i].Currency = models.DefaultCurrency
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	s.wishes = rows
	return s
}

func titles(wishes []models.Wish) []string {
	out := make([]string, 0, len(wishes))
	for _, w := range wishes {
		out = append(out, w.Title)
	}
	return out
}

func TestWishesFilters(t *testing.T) {
	db := testutil.NewDB(t)
	s := seedData(t, db)
	q := NewService(db)
	ctx := context.Background()

	reserved := models.WishReserved
	tid := int64(100)
	unknown := int64(999)

	cases := []struct {
		name   string
		filter WishFilter
		want   []string
	}{
		{"all in display order", WishFilter{}, []string{"gifted", "first", "second"}},
		{"by owner", WishFilter{UserID: &s.owner.ID}, []string{"gifted", "first", "second"}},
		{"by telegram id", WishFilter{TelegramID: &tid}, []string{"gifted", "first", "second"}},
		{"unknown telegram id", WishFilter{TelegramID: &unknown}, []string{}},
		{"by wishlist", WishFilter{WishlistID: &s.main.ID}, []string{"first", "second"}},
		{"by status", WishFilter{Status: &reserved}, []string{"first"}},
		{"by reserver", WishFilter{ReservedByID: &s.friend.ID}, []string{"first"}},
		{"by gifter", WishFilter{GiftedByID: &s.friend.ID}, []string{"gifted"}},
		{"combined", WishFilter{WishlistID: &s.main.ID, GiftedByID: &s.friend.ID}, []string{}},
		{"paged", WishFilter{Limit: 1, Offset: 1}, []string{"first"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := q.Wishes(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, titles(got))
		})
	}
}

func TestWishesRejectsBadFilter(t *testing.T) {
	q := NewService(testutil.NewDB(t))
	bogus := models.WishStatus("lost")

	_, err := q.Wishes(context.Background(), WishFilter{Status: &bogus})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = q.Wishes(context.Background(), WishFilter{Limit: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestWishlistsCountWishes(t *testing.T) {
	db := testutil.NewDB(t)
	s := seedData(t, db)
	q := NewService(db)

	lists, err := q.Wishlists(context.Background(), WishlistFilter{UserID: &s.owner.ID})
	require.NoError(t, err)
	require.Len(t, lists, 2)

	assert.Equal(t, "Main", lists[0].Name)
	assert.EqualValues(t, 2, lists[0].WishesCount)
	assert.Equal(t, "Extra", lists[1].Name)
	assert.EqualValues(t, 1, lists[1].WishesCount)

	unknown := int64(999)
	lists, err = q.Wishlists(context.Background(), WishlistFilter{TelegramID: &unknown})
	require.NoError(t, err)
	assert.Empty(t, lists)
}
