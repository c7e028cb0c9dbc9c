package coupon

import (
	"time"

	"storefront/internal/model"
)

// Engine evaluates coupons against order and user context. It is a pure
// computation component: it never mutates the coupon and holds no shared
// state, so a single Engine is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an evaluation engine. The clock is injectable for
// testability; pass nil to use time.Now.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

// IsValid reports whether the coupon is active and not yet expired.
func (e *Engine) IsValid(c *model.Coupon) bool {
	return c.IsActive && e.now().Before(c.ExpiryDate)
}

// CanUserUse reports whether the given user may redeem the coupon right now.
// Checks short-circuit in order: validity, global usage cap, per-user cap.
// An empty userID identifies an unauthenticated caller, which bypasses the
// per-user cap but not the global one.
func (e *Engine) CanUserUse(c *model.Coupon, userID string) bool {
	if !e.IsValid(c) {
		return false
	}
	if e.GlobalLimitReached(c) {
		return false
	}
	if userID != "" && e.UserLimitReached(c, userID) {
		return false
	}
	return true
}

// GlobalLimitReached reports whether total redemptions have hit the
// coupon-wide usage limit. A nil limit means unlimited.
func (e *Engine) GlobalLimitReached(c *model.Coupon) bool {
	return c.UsageLimit != nil && len(c.UsedBy) >= *c.UsageLimit
}

// UserLimitReached reports whether the given user has exhausted their
// personal redemption allowance.
func (e *Engine) UserLimitReached(c *model.Coupon, userID string) bool {
	return e.UseCount(c, userID) >= c.UseLimitPerUser
}

// UseCount returns how many recorded redemptions belong to the given user.
func (e *Engine) UseCount(c *model.Coupon, userID string) int {
	count := 0
	for _, r := range c.UsedBy {
		if r.UserID == userID {
			count++
		}
	}
	return count
}

// IsValidForCategories reports whether a coupon applies to an item carrying
// the given category IDs. Restrictions that are disabled, or enabled with an
// empty category set, are treated as unrestricted; the administrative path
// rejects the enabled-but-empty combination at input time, the engine stays
// permissive.
func (e *Engine) IsValidForCategories(c *model.Coupon, categoryIDs []string) bool {
	r := c.CategoryRestrictions
	if !r.Enabled || len(r.Categories) == 0 {
		return true
	}

	restricted := make(map[string]struct{}, len(r.Categories))
	for _, id := range r.Categories {
		restricted[id] = struct{}{}
	}

	hasOverlap := false
	for _, id := range categoryIDs {
		if _, ok := restricted[id]; ok {
			hasOverlap = true
			break
		}
	}

	if r.RestrictionType == model.RestrictionExclude {
		return !hasOverlap
	}
	return hasOverlap
}

// CalculateDiscount computes the discount against a plain order value.
// The result is always within [0, orderValue].
func (e *Engine) CalculateDiscount(c *model.Coupon, orderValue float64) float64 {
	return e.Discount(c, OrderBasis(orderValue))
}

// CalculateDiscountForEligibleItems computes the discount against the
// portion of the cart the coupon is permitted to touch. Items outside the
// coupon's category restrictions never contribute to the discounted basis,
// even when the whole-cart total clears the minimum order value.
func (e *Engine) CalculateDiscountForEligibleItems(c *model.Coupon, items []model.CartItem) float64 {
	return e.Discount(c, ItemizedBasis(items))
}

// EligibleItems returns the cart items the coupon applies to. With
// restrictions disabled the full list is returned unfiltered.
func (e *Engine) EligibleItems(c *model.Coupon, items []model.CartItem) []model.CartItem {
	if !c.CategoryRestrictions.Enabled {
		return items
	}
	eligible := make([]model.CartItem, 0, len(items))
	for _, item := range items {
		if e.IsValidForCategories(c, item.Categories) {
			eligible = append(eligible, item)
		}
	}
	return eligible
}
