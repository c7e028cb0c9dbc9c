package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiscountType determines how a coupon's discount value is interpreted.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the eligible subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed amount, capped at the eligible subtotal.
	DiscountFixed DiscountType = "fixed"
)

// RestrictionType determines whether a category restriction includes or
// excludes the listed categories.
type RestrictionType string

const (
	RestrictionInclude RestrictionType = "include"
	RestrictionExclude RestrictionType = "exclude"
)

// UserType classifies customers for user-targeted restrictions.
type UserType string

const (
	UserTypeNew      UserType = "new"
	UserTypeExisting UserType = "existing"
	UserTypeVIP      UserType = "vip"
	UserTypePremium  UserType = "premium"
)

// CategoryRestrictions limits a coupon to (or away from) a set of
// product categories.
type CategoryRestrictions struct {
	Enabled         bool            `json:"enabled"`
	Categories      []string        `json:"categories"`
	RestrictionType RestrictionType `json:"restrictionType"`
}

// UserRestrictions carries user-targeting fields. They are stored and
// round-tripped but not evaluated by the redemption path.
type UserRestrictions struct {
	Enabled       bool       `json:"enabled"`
	UserTypes     []UserType `json:"userTypes"`
	MinimumOrders int        `json:"minimumOrders"`
	MinimumSpent  float64    `json:"minimumSpent"`
}

// Redemption records a single usage of a coupon by a user.
type Redemption struct {
	ID       uuid.UUID `json:"-" db:"id"`
	CouponID uuid.UUID `json:"-" db:"coupon_id"`
	UserID   string    `json:"userId" db:"user_id"`
	UsedAt   time.Time `json:"usedAt" db:"used_at"`
}

// Coupon represents a discount coupon. Codes are stored uppercase so the
// database's unique index enforces case-insensitive uniqueness.
type Coupon struct {
	ID                   uuid.UUID            `json:"id" db:"id"`
	Code                 string               `json:"code" db:"code"`
	DiscountType         DiscountType         `json:"discountType" db:"discount_type"`
	DiscountValue        float64              `json:"discountValue" db:"discount_value"`
	MinOrderValue        float64              `json:"minOrderValue" db:"min_order_value"`
	ExpiryDate           time.Time            `json:"expiryDate" db:"expiry_date"`
	UsageLimit           *int                 `json:"usageLimit,omitempty" db:"usage_limit"`
	UseLimitPerUser      int                  `json:"useLimitPerUser" db:"use_limit_per_user"`
	CategoryRestrictions CategoryRestrictions `json:"categoryRestrictions" db:"category_restrictions"`
	UserRestrictions     UserRestrictions     `json:"userRestrictions" db:"user_restrictions"`
	IsUnlisted           bool                 `json:"isUnlisted" db:"is_unlisted"`
	IsActive             bool                 `json:"isActive" db:"is_active"`
	UsedBy               []Redemption         `json:"usedBy"`
	CreatedAt            time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time            `json:"updatedAt" db:"updated_at"`
}

// NormalizeCode uppercases and trims a coupon code. All lookups and writes
// go through this so comparisons never need runtime case folding.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponRequest represents the create/update payload for a coupon.
type CouponRequest struct {
	Code                 string               `json:"code"`
	DiscountType         DiscountType         `json:"discountType"`
	DiscountValue        float64              `json:"discountValue"`
	MinOrderValue        float64              `json:"minOrderValue"`
	ExpiryDate           time.Time            `json:"expiryDate"`
	UsageLimit           *int                 `json:"usageLimit,omitempty"`
	UseLimitPerUser      int                  `json:"useLimitPerUser"`
	CategoryRestrictions CategoryRestrictions `json:"categoryRestrictions"`
	UserRestrictions     UserRestrictions     `json:"userRestrictions"`
	IsUnlisted           bool                 `json:"isUnlisted"`
	IsActive             *bool                `json:"isActive,omitempty"`
}

// RedeemRequest represents the request payload for redeeming a coupon.
type RedeemRequest struct {
	Code       string     `json:"code"`
	UserID     string     `json:"userId"`
	OrderValue float64    `json:"orderValue"`
	CartItems  []CartItem `json:"cartItems,omitempty"`
}

// RedeemResponse represents the result of a successful redemption.
type RedeemResponse struct {
	Code           string  `json:"code"`
	DiscountAmount float64 `json:"discountAmount"`
	FinalTotal     float64 `json:"finalTotal"`
}

// PreviewResponse reports the discount a coupon would yield without
// recording a redemption, along with the line items it applies to.
type PreviewResponse struct {
	Code           string     `json:"code"`
	DiscountAmount float64    `json:"discountAmount"`
	FinalTotal     float64    `json:"finalTotal"`
	EligibleItems  []CartItem `json:"eligibleItems"`
}
