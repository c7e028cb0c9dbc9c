package repository

import (
	"context"
	"time"

	"storefront/internal/model"
)

// CouponRepository defines the interface for coupon data access operations.
type CouponRepository interface {
	// Create inserts a new coupon. Returns model.ErrCouponExists when the
	// (case-insensitively unique) code is already taken.
	Create(ctx context.Context, coupon *model.Coupon) error

	// Update replaces a coupon's administrative fields by code. Historical
	// redemption records are never touched. Returns model.ErrCouponNotFound
	// when no coupon matches.
	Update(ctx context.Context, coupon *model.Coupon) error

	// Delete removes a coupon and its redemption records by code.
	Delete(ctx context.Context, code string) error

	// GetByCode retrieves a coupon by its normalized code, including its
	// redemption history. Returns (nil, nil) when no coupon matches.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// List retrieves coupons ordered by creation time. Unlisted coupons are
	// omitted unless includeUnlisted is set.
	List(ctx context.Context, includeUnlisted bool) ([]model.Coupon, error)

	// RecordRedemption appends a redemption record for the coupon, but only
	// if the global and per-user usage limits still hold at commit time.
	// The check and the append run under a row lock on the coupon, so two
	// racing redemptions cannot both slip past an exhausted limit. Returns
	// model.ErrConcurrencyConflict when a limit predicate no longer holds.
	RecordRedemption(ctx context.Context, coupon *model.Coupon, userID string, usedAt time.Time) error
}
