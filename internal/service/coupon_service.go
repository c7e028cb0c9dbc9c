package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/coupon"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// couponService implements CouponService.
type couponService struct {
	repo   repository.CouponRepository
	engine *coupon.Engine
	logger zerolog.Logger
	now    func() time.Time
}

// NewCouponService creates a new coupon service. The clock is injectable
// for testability; pass nil to use time.Now.
func NewCouponService(
	repo repository.CouponRepository,
	engine *coupon.Engine,
	logger zerolog.Logger,
	now func() time.Time,
) CouponService {
	if now == nil {
		now = time.Now
	}
	return &couponService{
		repo:   repo,
		engine: engine,
		logger: logger.With().Str("service", "coupon").Logger(),
		now:    now,
	}
}

// Create validates and persists a new coupon from administrative input.
func (s *couponService) Create(ctx context.Context, req *model.CouponRequest) (*model.Coupon, error) {
	if err := s.validateCouponRequest(req); err != nil {
		s.logger.Warn().Err(err).Msg("coupon create rejected")
		return nil, err
	}

	now := s.now()
	c := s.couponFromRequest(req)
	c.ID = uuid.New()
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info().Str("code", c.Code).Msg("coupon created")

	return c, nil
}

// Update validates and applies administrative changes to an existing coupon.
func (s *couponService) Update(ctx context.Context, code string, req *model.CouponRequest) (*model.Coupon, error) {
	code = model.NormalizeCode(code)
	if req.Code == "" {
		req.Code = code
	}
	if model.NormalizeCode(req.Code) != code {
		return nil, model.NewValidationError("code", "coupon code cannot be changed")
	}

	if err := s.validateCouponRequest(req); err != nil {
		s.logger.Warn().Err(err).Str("code", code).Msg("coupon update rejected")
		return nil, err
	}

	existing, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	if existing == nil {
		return nil, model.ErrCouponNotFound
	}

	c := s.couponFromRequest(req)
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now()
	c.UsedBy = existing.UsedBy

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info().Str("code", code).Msg("coupon updated")

	return c, nil
}

// Delete removes a coupon by code.
func (s *couponService) Delete(ctx context.Context, code string) error {
	code = model.NormalizeCode(code)
	if err := s.repo.Delete(ctx, code); err != nil {
		return err
	}

	s.logger.Info().Str("code", code).Msg("coupon deleted")

	return nil
}

// GetByCode retrieves a coupon by its code.
func (s *couponService) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := s.repo.GetByCode(ctx, model.NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	if c == nil {
		return nil, model.ErrCouponNotFound
	}
	return c, nil
}

// List returns the public discovery listing.
func (s *couponService) List(ctx context.Context) ([]model.Coupon, error) {
	coupons, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	listed := make([]model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if s.engine.IsValid(&c) {
			listed = append(listed, c)
		}
	}
	return listed, nil
}

// EligibleForUser returns the coupons a user could redeem for an order of
// the given value.
func (s *couponService) EligibleForUser(ctx context.Context, userID string, orderValue float64) ([]model.Coupon, error) {
	coupons, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	eligible := make([]model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if !s.engine.CanUserUse(&c, userID) {
			continue
		}
		if orderValue > 0 && orderValue < c.MinOrderValue {
			continue
		}
		eligible = append(eligible, c)
	}

	s.logger.Debug().
		Str("user_id", userID).
		Float64("order_value", orderValue).
		Int("eligible_count", len(eligible)).
		Msg("eligible coupons computed")

	return eligible, nil
}

// Preview computes the discount a coupon would yield without redeeming it.
func (s *couponService) Preview(ctx context.Context, req *model.RedeemRequest) (*model.PreviewResponse, error) {
	c, err := s.GetByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	if !s.engine.IsValid(c) {
		return nil, model.ErrCouponInvalid
	}

	orderValue := s.resolveOrderValue(req)

	var discount float64
	if len(req.CartItems) > 0 {
		discount = s.engine.CalculateDiscountForEligibleItems(c, req.CartItems)
	} else {
		discount = s.engine.CalculateDiscount(c, orderValue)
	}

	return &model.PreviewResponse{
		Code:           c.Code,
		DiscountAmount: discount,
		FinalTotal:     orderValue - discount,
		EligibleItems:  s.engine.EligibleItems(c, req.CartItems),
	}, nil
}

// Redeem resolves a coupon, checks eligibility, computes the discount and
// records the usage atomically. A redemption that loses the storage-level
// race is retried once against a fresh snapshot before failing.
func (s *couponService) Redeem(ctx context.Context, req *model.RedeemRequest) (*model.RedeemResponse, error) {
	if req.UserID == "" {
		return nil, model.NewValidationError("userId", "user identifier is required to redeem a coupon")
	}

	resp, err := s.redeemOnce(ctx, req)
	if errors.Is(err, model.ErrConcurrencyConflict) {
		s.logger.Warn().
			Str("code", req.Code).
			Str("user_id", req.UserID).
			Msg("redemption conflicted, retrying once")
		resp, err = s.redeemOnce(ctx, req)
		if errors.Is(err, model.ErrConcurrencyConflict) {
			// The retry saw predicates that held in memory but lost the
			// write again; surface it as plain ineligibility.
			return nil, model.ErrNotEligible
		}
	}
	return resp, err
}

// redeemOnce performs a single check-then-append attempt against a fresh
// coupon snapshot.
func (s *couponService) redeemOnce(ctx context.Context, req *model.RedeemRequest) (*model.RedeemResponse, error) {
	c, err := s.GetByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	if !s.engine.IsValid(c) {
		s.logger.Warn().Str("code", c.Code).Msg("redemption of inactive or expired coupon")
		return nil, model.ErrCouponInvalid
	}

	if !s.engine.CanUserUse(c, req.UserID) {
		return nil, s.eligibilityError(c, req.UserID)
	}

	orderValue := s.resolveOrderValue(req)

	var discount float64
	if len(req.CartItems) > 0 {
		if c.CategoryRestrictions.Enabled && len(s.engine.EligibleItems(c, req.CartItems)) == 0 {
			return nil, model.ErrCategoryMismatch
		}
		discount = s.engine.CalculateDiscountForEligibleItems(c, req.CartItems)
		if discount == 0 && c.MinOrderValue > 0 {
			return nil, model.ErrBelowMinimumOrder
		}
	} else {
		if orderValue < c.MinOrderValue {
			return nil, model.ErrBelowMinimumOrder
		}
		discount = s.engine.CalculateDiscount(c, orderValue)
	}

	if err := s.repo.RecordRedemption(ctx, c, req.UserID, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("code", c.Code).
		Str("user_id", req.UserID).
		Float64("discount", discount).
		Msg("coupon redeemed")

	return &model.RedeemResponse{
		Code:           c.Code,
		DiscountAmount: discount,
		FinalTotal:     orderValue - discount,
	}, nil
}

// eligibilityError refines a CanUserUse failure into a precise reason by
// re-checking the sub-conditions independently.
func (s *couponService) eligibilityError(c *model.Coupon, userID string) error {
	switch {
	case s.engine.GlobalLimitReached(c):
		return model.ErrGlobalLimitReached
	case userID != "" && s.engine.UserLimitReached(c, userID):
		return model.ErrUserLimitReached
	default:
		return model.ErrNotEligible
	}
}

// resolveOrderValue falls back to the itemized cart total when the caller
// did not supply an explicit order value.
func (s *couponService) resolveOrderValue(req *model.RedeemRequest) float64 {
	if req.OrderValue > 0 || len(req.CartItems) == 0 {
		return req.OrderValue
	}
	total := 0.0
	for _, item := range req.CartItems {
		total += item.EffectiveSubtotal()
	}
	return total
}

// couponFromRequest maps validated administrative input onto the entity,
// applying defaults and code normalization.
func (s *couponService) couponFromRequest(req *model.CouponRequest) *model.Coupon {
	perUser := req.UseLimitPerUser
	if perUser == 0 {
		perUser = 1
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &model.Coupon{
		Code:                 model.NormalizeCode(req.Code),
		DiscountType:         req.DiscountType,
		DiscountValue:        req.DiscountValue,
		MinOrderValue:        req.MinOrderValue,
		ExpiryDate:           req.ExpiryDate,
		UsageLimit:           req.UsageLimit,
		UseLimitPerUser:      perUser,
		CategoryRestrictions: req.CategoryRestrictions,
		UserRestrictions:     req.UserRestrictions,
		IsUnlisted:           req.IsUnlisted,
		IsActive:             active,
	}
}

// validateCouponRequest enforces the administrative input rules. The
// evaluation engine stays permissive about combinations rejected here.
func (s *couponService) validateCouponRequest(req *model.CouponRequest) error {
	if req == nil {
		return model.NewValidationError("request", "request body is required")
	}

	if model.NormalizeCode(req.Code) == "" {
		return model.NewValidationError("code", "coupon code is required")
	}

	switch req.DiscountType {
	case model.DiscountPercentage:
		if req.DiscountValue <= 0 || req.DiscountValue > 100 {
			return model.NewValidationError("discountValue", "percentage must be greater than 0 and at most 100")
		}
	case model.DiscountFixed:
		if req.DiscountValue < 0 {
			return model.NewValidationError("discountValue", "fixed discount cannot be negative")
		}
	default:
		return model.NewValidationError("discountType", "discount type must be percentage or fixed")
	}

	if req.MinOrderValue < 0 {
		return model.NewValidationError("minOrderValue", "minimum order value cannot be negative")
	}

	if !req.ExpiryDate.After(s.now()) {
		return model.NewValidationError("expiryDate", "expiry date must be in the future")
	}

	if req.UsageLimit != nil && *req.UsageLimit < 1 {
		return model.NewValidationError("usageLimit", "usage limit must be at least 1 when set")
	}

	if req.UseLimitPerUser < 0 {
		return model.NewValidationError("useLimitPerUser", "per-user limit cannot be negative")
	}

	if req.CategoryRestrictions.Enabled {
		if len(req.CategoryRestrictions.Categories) == 0 {
			return model.NewValidationError("categoryRestrictions", "restrictions enabled with an empty category set")
		}
		switch req.CategoryRestrictions.RestrictionType {
		case model.RestrictionInclude, model.RestrictionExclude:
		default:
			return model.NewValidationError("categoryRestrictions", "restriction type must be include or exclude")
		}
	}

	return nil
}
