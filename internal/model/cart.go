package model

// CartItem is a normalized order line as supplied by the caller. Discount is
// a per-item percentage markdown (0-100) already granted on the product,
// independent of any coupon.
type CartItem struct {
	Price      float64  `json:"price"`
	Discount   float64  `json:"discount"`
	Quantity   int      `json:"quantity"`
	Categories []string `json:"category"`
}

// EffectiveSubtotal returns the item's post-markdown price multiplied by
// quantity. This is the monetary basis coupons evaluate against.
func (i CartItem) EffectiveSubtotal() float64 {
	return i.Price * (1 - i.Discount/100) * float64(i.Quantity)
}
