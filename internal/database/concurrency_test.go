package database_test

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wishlist-bot/internal/database"
	"wishlist-bot/internal/identity"
	"wishlist-bot/internal/models"
	"wishlist-bot/internal/wish"
	"wishlist-bot/internal/wishlist"
)

const workers = 8

type pgFixture struct {
	db     *gorm.DB
	users  *identity.Service
	lists  *wishlist.Service
	wishes *wish.Service
}

func newPostgres(t *testing.T) *pgFixture {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	log := logrus.New()
	log.SetOutput(io.Discard)
	users := identity.NewService(db, nil, log)
	lists := wishlist.NewService(db, log)
	return &pgFixture{db: db, users: users, lists: lists, wishes: wish.NewService(db, users, lists, log)}
}

// register creates a throwaway user and removes it with everything it owns after the test.
func (f *pgFixture) register(t *testing.T, offset int64) models.User {
	t.Helper()
	tid := 8_000_000_000 + time.Now().UnixNano()%1_000_000_000 + offset
	user, _, err := f.users.GetOrRegister(context.Background(), identity.Registration{TelegramID: tid})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.users.Delete(context.Background(), user.ID) })
	return user
}

func parallel(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	return errs
}

func TestPostgresConcurrentDefaultCreates(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	owner := f.register(t, 0)
	yes := true

	errs := parallel(workers, func(i int) error {
		name := "list"
		_, err := f.lists.Create(ctx, owner.ID, wishlist.Fields{Name: &name, IsDefault: &yes})
		return err
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	var total, defaults int64
	require.NoError(t, f.db.Model(&models.Wishlist{}).Where("user_id = ?", owner.ID).Count(&total).Error)
	require.NoError(t, f.db.Model(&models.Wishlist{}).Where("user_id = ? AND is_default", owner.ID).Count(&defaults).Error)
	assert.EqualValues(t, workers, total)
	assert.EqualValues(t, 1, defaults)
}

func TestPostgresConcurrentFulfillCounters(t *testing.T) {
	f := newPostgres(t)
	ctx := context.Background()
	owner := f.register(t, 0)
	gifter := f.register(t, 1)

	name := "gifts"
	wl, err := f.lists.Create(ctx, owner.ID, wishlist.Fields{Name: &name})
	require.NoError(t, err)

	ids := make([]uint, workers)
	for i := range ids {
		title := "wish"
		w, err := f.wishes.Create(ctx, wish.Fields{WishlistID: &wl.ID, Title: &title})
		require.NoError(t, err)
		ids[i] = w.ID
	}

	for _, err := range parallel(workers, func(i int) error {
		_, err := f.wishes.Fulfill(ctx, ids[i], &gifter.ID)
		return err
	}) {
		require.NoError(t, err)
	}
	received, given := counters(t, f.db, owner.ID, gifter.ID)
	assert.Equal(t, workers, received)
	assert.Equal(t, workers, given)

	for _, err := range parallel(workers, func(i int) error {
		_, err := f.wishes.Unfulfill(ctx, ids[i])
		return err
	}) {
		require.NoError(t, err)
	}
	received, given = counters(t, f.db, owner.ID, gifter.ID)
	assert.Zero(t, received)
	assert.Zero(t, given)
}

func counters(t *testing.T, db *gorm.DB, ownerID, gifterID uint) (received, given int) {
	t.Helper()
	var owner, gifter models.User
	require.NoError(t, db.First(&owner, ownerID).Error)
	require.NoError(t, db.First(&gifter, gifterID).Error)
	return owner.GiftsReceived, gifter.GiftsGiven
}
