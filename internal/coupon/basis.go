package coupon

import (
	"storefront/internal/model"
)

// basisKind discriminates the two ways a discount basis can be supplied.
type basisKind int

const (
	orderBasis basisKind = iota
	itemizedBasis
)

// Basis is the monetary foundation a coupon is evaluated against: either a
// caller-supplied order total, or an itemized cart from which the engine
// derives the eligible subtotal itself. Both discount paths flow through
// the same type so category-partial eligibility is handled uniformly.
type Basis struct {
	kind  basisKind
	value float64
	items []model.CartItem
}

// OrderBasis builds a basis from an already-known order subtotal.
func OrderBasis(orderValue float64) Basis {
	return Basis{kind: orderBasis, value: orderValue}
}

// ItemizedBasis builds a basis from normalized cart line items.
func ItemizedBasis(items []model.CartItem) Basis {
	return Basis{kind: itemizedBasis, items: items}
}

// Discount computes the discount a coupon yields against the basis.
// The result is always within [0, eligible subtotal].
func (e *Engine) Discount(c *model.Coupon, b Basis) float64 {
	subtotal, ok := e.eligibleSubtotal(c, b)
	if !ok {
		// Zero eligible items: nothing to discount, regardless of the
		// minimum order value.
		return 0
	}

	if subtotal < c.MinOrderValue {
		return 0
	}

	var discount float64
	switch c.DiscountType {
	case model.DiscountPercentage:
		discount = subtotal * c.DiscountValue / 100
	default:
		discount = c.DiscountValue
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// eligibleSubtotal resolves the basis to the portion of value the coupon may
// discount. The second return is false when a restricted coupon matches no
// items at all.
func (e *Engine) eligibleSubtotal(c *model.Coupon, b Basis) (float64, bool) {
	if b.kind == orderBasis {
		return b.value, true
	}

	items := b.items
	if c.CategoryRestrictions.Enabled {
		items = e.EligibleItems(c, b.items)
		if len(items) == 0 {
			return 0, false
		}
	}

	subtotal := 0.0
	for _, item := range items {
		subtotal += item.EffectiveSubtotal()
	}
	return subtotal, true
}
