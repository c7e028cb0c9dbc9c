package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()
	repo := repository.NewCouponRepository(testDB.Pool, logger)

	ctx := context.Background()

	t.Run("Create and GetByCode round-trips restriction documents", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		c := NewTestCoupon("ELECTRONICS15")
		c.CategoryRestrictions = model.CategoryRestrictions{
			Enabled:         true,
			Categories:      []string{"electronics", "computers"},
			RestrictionType: model.RestrictionInclude,
		}
		c.UserRestrictions = model.UserRestrictions{
			Enabled:   true,
			UserTypes: []model.UserType{model.UserTypeVIP},
		}
		require.NoError(t, repo.Create(ctx, c))

		got, err := repo.GetByCode(ctx, "ELECTRONICS15")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, c.ID, got.ID)
		assert.Equal(t, model.DiscountPercentage, got.DiscountType)
		assert.True(t, got.CategoryRestrictions.Enabled)
		assert.Equal(t, []string{"electronics", "computers"}, got.CategoryRestrictions.Categories)
		assert.Equal(t, model.RestrictionInclude, got.CategoryRestrictions.RestrictionType)
		assert.True(t, got.UserRestrictions.Enabled)
		assert.Empty(t, got.UsedBy)
	})

	t.Run("Create rejects duplicate codes", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		require.NoError(t, repo.Create(ctx, NewTestCoupon("SAVE20")))

		err := repo.Create(ctx, NewTestCoupon("SAVE20"))
		assert.ErrorIs(t, err, model.ErrCouponExists)
	})

	t.Run("GetByCode returns nil for unknown code", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		got, err := repo.GetByCode(ctx, "MISSING")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Update replaces administrative fields", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		c := NewTestCoupon("SAVE20")
		require.NoError(t, repo.Create(ctx, c))

		c.DiscountValue = 25
		c.MinOrderValue = 50
		c.IsActive = false
		c.UpdatedAt = time.Now().UTC()
		require.NoError(t, repo.Update(ctx, c))

		got, err := repo.GetByCode(ctx, "SAVE20")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 25.0, got.DiscountValue)
		assert.Equal(t, 50.0, got.MinOrderValue)
		assert.False(t, got.IsActive)
	})

	t.Run("Update reports missing coupon", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		err := repo.Update(ctx, NewTestCoupon("MISSING"))
		assert.ErrorIs(t, err, model.ErrCouponNotFound)
	})

	t.Run("Delete removes coupon and its redemptions", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		c := NewTestCoupon("SAVE20")
		require.NoError(t, repo.Create(ctx, c))
		require.NoError(t, repo.RecordRedemption(ctx, c, "user-1", time.Now().UTC()))

		require.NoError(t, repo.Delete(ctx, "SAVE20"))

		got, err := repo.GetByCode(ctx, "SAVE20")
		require.NoError(t, err)
		assert.Nil(t, got)

		var count int
		require.NoError(t, testDB.Pool.QueryRow(ctx,
			`SELECT count(*) FROM coupon_redemptions WHERE coupon_id = $1`, c.ID).Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("List filters unlisted coupons", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		listed := NewTestCoupon("PUBLIC10")
		require.NoError(t, repo.Create(ctx, listed))

		hidden := NewTestCoupon("SECRET10")
		hidden.IsUnlisted = true
		require.NoError(t, repo.Create(ctx, hidden))

		coupons, err := repo.List(ctx, false)
		require.NoError(t, err)
		require.Len(t, coupons, 1)
		assert.Equal(t, "PUBLIC10", coupons[0].Code)

		coupons, err = repo.List(ctx, true)
		require.NoError(t, err)
		assert.Len(t, coupons, 2)
	})

	t.Run("RecordRedemption appends history in order", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		c := NewTestCoupon("SAVE20")
		c.UseLimitPerUser = 3
		require.NoError(t, repo.Create(ctx, c))

		base := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, repo.RecordRedemption(ctx, c, "user-1", base))
		require.NoError(t, repo.RecordRedemption(ctx, c, "user-1", base.Add(time.Second)))

		got, err := repo.GetByCode(ctx, "SAVE20")
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Len(t, got.UsedBy, 2)
		assert.Equal(t, "user-1", got.UsedBy[0].UserID)
		assert.True(t, got.UsedBy[0].UsedAt.Before(got.UsedBy[1].UsedAt))
	})

	t.Run("RecordRedemption enforces per-user limit", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		c := NewTestCoupon("SAVE20")
		require.NoError(t, repo.Create(ctx, c))

		require.NoError(t, repo.RecordRedemption(ctx, c, "user-1", time.Now().UTC()))

		err := repo.RecordRedemption(ctx, c, "user-1", time.Now().UTC())
		assert.ErrorIs(t, err, model.ErrConcurrencyConflict)

		// Other users are unaffected.
		require.NoError(t, repo.RecordRedemption(ctx, c, "user-2", time.Now().UTC()))
	})

	t.Run("RecordRedemption enforces global limit", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		limit := 2
		c := NewTestCoupon("SAVE20")
		c.UsageLimit = &limit
		require.NoError(t, repo.Create(ctx, c))

		require.NoError(t, repo.RecordRedemption(ctx, c, "user-1", time.Now().UTC()))
		require.NoError(t, repo.RecordRedemption(ctx, c, "user-2", time.Now().UTC()))

		err := repo.RecordRedemption(ctx, c, "user-3", time.Now().UTC())
		assert.ErrorIs(t, err, model.ErrConcurrencyConflict)
	})

	t.Run("Concurrent redemptions never exceed the global limit", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		limit := 3
		c := NewTestCoupon("FLASH50")
		c.UsageLimit = &limit
		require.NoError(t, repo.Create(ctx, c))

		const attempts = 10
		errs := make([]error, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				userID := "user-" + string(rune('a'+i))
				errs[i] = repo.RecordRedemption(ctx, c, userID, time.Now().UTC())
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, model.ErrConcurrencyConflict)
			}
		}
		assert.Equal(t, limit, succeeded)

		var count int
		require.NoError(t, testDB.Pool.QueryRow(ctx,
			`SELECT count(*) FROM coupon_redemptions WHERE coupon_id = $1`, c.ID).Scan(&count))
		assert.Equal(t, limit, count)
	})

	t.Run("Concurrent redemptions never exceed the per-user limit", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		c := NewTestCoupon("ONCE10")
		require.NoError(t, repo.Create(ctx, c))

		const attempts = 5
		errs := make([]error, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.RecordRedemption(ctx, c, "user-1", time.Now().UTC())
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}
