package service

import (
	"context"

	"storefront/internal/model"
)

// CouponService defines operations for coupon management and redemption.
type CouponService interface {
	// Create validates and persists a new coupon from administrative input.
	Create(ctx context.Context, req *model.CouponRequest) (*model.Coupon, error)

	// Update validates and applies administrative changes to an existing
	// coupon. Historical redemption records are never modified.
	Update(ctx context.Context, code string, req *model.CouponRequest) (*model.Coupon, error)

	// Delete removes a coupon by code.
	Delete(ctx context.Context, code string) error

	// GetByCode retrieves a coupon by its (case-insensitive) code.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// List returns the public discovery listing: currently valid coupons,
	// with unlisted ones omitted.
	List(ctx context.Context) ([]model.Coupon, error)

	// EligibleForUser returns the coupons the given user could redeem for
	// an order of the given value. An empty userID (unauthenticated caller)
	// is screened by validity and minimum-order criteria only.
	EligibleForUser(ctx context.Context, userID string, orderValue float64) ([]model.Coupon, error)

	// Preview computes the discount a coupon would yield for the given
	// order context without recording a redemption.
	Preview(ctx context.Context, req *model.RedeemRequest) (*model.PreviewResponse, error)

	// Redeem resolves a coupon, checks eligibility, computes the discount
	// and records the usage atomically.
	Redeem(ctx context.Context, req *model.RedeemRequest) (*model.RedeemResponse, error)
}
