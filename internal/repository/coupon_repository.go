package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// couponRepository implements the CouponRepository interface using PostgreSQL.
// Category and user restrictions are stored as JSONB documents alongside the
// scalar coupon columns.
type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// Create inserts a new coupon.
func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, discount_type, discount_value, min_order_value,
			expiry_date, usage_limit, use_limit_per_user,
			category_restrictions, user_restrictions,
			is_unlisted, is_active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	categoryJSON, userJSON, err := marshalRestrictions(coupon)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		coupon.ID,
		coupon.Code,
		coupon.DiscountType,
		coupon.DiscountValue,
		coupon.MinOrderValue,
		coupon.ExpiryDate,
		coupon.UsageLimit,
		coupon.UseLimitPerUser,
		categoryJSON,
		userJSON,
		coupon.IsUnlisted,
		coupon.IsActive,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Warn().Str("code", coupon.Code).Msg("coupon code already exists")
			return model.ErrCouponExists
		}
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to create coupon")
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	r.logger.Debug().Str("code", coupon.Code).Msg("coupon created successfully")

	return nil
}

// Update replaces a coupon's administrative fields by code.
func (r *couponRepository) Update(ctx context.Context, coupon *model.Coupon) error {
	query := `
		UPDATE coupons
		SET discount_type = $2,
		    discount_value = $3,
		    min_order_value = $4,
		    expiry_date = $5,
		    usage_limit = $6,
		    use_limit_per_user = $7,
		    category_restrictions = $8,
		    user_restrictions = $9,
		    is_unlisted = $10,
		    is_active = $11,
		    updated_at = $12
		WHERE code = $1
	`

	categoryJSON, userJSON, err := marshalRestrictions(coupon)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, query,
		coupon.Code,
		coupon.DiscountType,
		coupon.DiscountValue,
		coupon.MinOrderValue,
		coupon.ExpiryDate,
		coupon.UsageLimit,
		coupon.UseLimitPerUser,
		categoryJSON,
		userJSON,
		coupon.IsUnlisted,
		coupon.IsActive,
		coupon.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to update coupon")
		return fmt.Errorf("failed to update coupon: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrCouponNotFound
	}

	r.logger.Debug().Str("code", coupon.Code).Msg("coupon updated successfully")

	return nil
}

// Delete removes a coupon and its redemption records by code.
func (r *couponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE code = $1`, code)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to delete coupon")
		return fmt.Errorf("failed to delete coupon: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrCouponNotFound
	}

	r.logger.Debug().Str("code", code).Msg("coupon deleted")

	return nil
}

// GetByCode retrieves a coupon and its redemption history.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_order_value,
		       expiry_date, usage_limit, use_limit_per_user,
		       category_restrictions, user_restrictions,
		       is_unlisted, is_active, created_at, updated_at
		FROM coupons
		WHERE code = $1
	`

	coupon, err := r.scanCoupon(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	redemptions, err := r.getRedemptions(ctx, coupon.ID)
	if err != nil {
		return nil, err
	}
	coupon.UsedBy = redemptions

	return coupon, nil
}

// List retrieves coupons ordered by creation time.
func (r *couponRepository) List(ctx context.Context, includeUnlisted bool) ([]model.Coupon, error) {
	query := `
		SELECT id, code, discount_type, discount_value, min_order_value,
		       expiry_date, usage_limit, use_limit_per_user,
		       category_restrictions, user_restrictions,
		       is_unlisted, is_active, created_at, updated_at
		FROM coupons
		WHERE is_unlisted = false OR $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, includeUnlisted)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query coupons")
		return nil, fmt.Errorf("failed to query coupons: %w", err)
	}
	defer rows.Close()

	var coupons []model.Coupon
	for rows.Next() {
		coupon, err := r.scanCoupon(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan coupon row")
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, *coupon)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating coupon rows")
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}

	// Listings evaluate usage caps, so redemption histories come along.
	for i := range coupons {
		redemptions, err := r.getRedemptions(ctx, coupons[i].ID)
		if err != nil {
			return nil, err
		}
		coupons[i].UsedBy = redemptions
	}

	return coupons, nil
}

// RecordRedemption appends a redemption record under a row lock on the
// coupon, re-validating both usage limits inside the same transaction.
func (r *couponRepository) RecordRedemption(ctx context.Context, coupon *model.Coupon, userID string, usedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the coupon row so concurrent redemptions of the same coupon
	// serialise here.
	var usageLimit *int
	var perUserLimit int
	err = tx.QueryRow(ctx, `
		SELECT usage_limit, use_limit_per_user
		FROM coupons
		WHERE id = $1
		FOR UPDATE
	`, coupon.ID).Scan(&usageLimit, &perUserLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrCouponNotFound
		}
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to lock coupon row")
		return fmt.Errorf("failed to lock coupon: %w", err)
	}

	// Re-check the limit predicates against committed state, inside the lock.
	var totalUses, userUses int
	err = tx.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE user_id = $2)
		FROM coupon_redemptions
		WHERE coupon_id = $1
	`, coupon.ID, userID).Scan(&totalUses, &userUses)
	if err != nil {
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to count redemptions")
		return fmt.Errorf("failed to count redemptions: %w", err)
	}

	if usageLimit != nil && totalUses >= *usageLimit {
		r.logger.Warn().
			Str("code", coupon.Code).
			Int("total_uses", totalUses).
			Msg("redemption lost race against global usage limit")
		return model.ErrConcurrencyConflict
	}
	if userUses >= perUserLimit {
		r.logger.Warn().
			Str("code", coupon.Code).
			Str("user_id", userID).
			Int("user_uses", userUses).
			Msg("redemption lost race against per-user limit")
		return model.ErrConcurrencyConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO coupon_redemptions (id, coupon_id, user_id, used_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), coupon.ID, userID, usedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to insert redemption")
		return fmt.Errorf("failed to insert redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to commit redemption")
		return fmt.Errorf("failed to commit redemption: %w", err)
	}

	r.logger.Debug().
		Str("code", coupon.Code).
		Str("user_id", userID).
		Msg("redemption recorded")

	return nil
}

// getRedemptions loads the append-only redemption history for a coupon.
func (r *couponRepository) getRedemptions(ctx context.Context, couponID uuid.UUID) ([]model.Redemption, error) {
	query := `
		SELECT id, coupon_id, user_id, used_at
		FROM coupon_redemptions
		WHERE coupon_id = $1
		ORDER BY used_at, id
	`

	rows, err := r.pool.Query(ctx, query, couponID)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", couponID.String()).Msg("failed to query redemptions")
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []model.Redemption
	for rows.Next() {
		var redemption model.Redemption
		if err := rows.Scan(&redemption.ID, &redemption.CouponID, &redemption.UserID, &redemption.UsedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan redemption row")
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		redemptions = append(redemptions, redemption)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating redemption rows")
		return nil, fmt.Errorf("error iterating redemptions: %w", err)
	}

	return redemptions, nil
}

// scanCoupon scans a coupon row, decoding the JSONB restriction documents.
func (r *couponRepository) scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var coupon model.Coupon
	var categoryJSON, userJSON []byte

	err := row.Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.DiscountType,
		&coupon.DiscountValue,
		&coupon.MinOrderValue,
		&coupon.ExpiryDate,
		&coupon.UsageLimit,
		&coupon.UseLimitPerUser,
		&categoryJSON,
		&userJSON,
		&coupon.IsUnlisted,
		&coupon.IsActive,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(categoryJSON, &coupon.CategoryRestrictions); err != nil {
		return nil, fmt.Errorf("failed to decode category restrictions: %w", err)
	}
	if err := json.Unmarshal(userJSON, &coupon.UserRestrictions); err != nil {
		return nil, fmt.Errorf("failed to decode user restrictions: %w", err)
	}

	return &coupon, nil
}

// marshalRestrictions encodes both restriction documents for storage.
func marshalRestrictions(coupon *model.Coupon) ([]byte, []byte, error) {
	categoryJSON, err := json.Marshal(coupon.CategoryRestrictions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode category restrictions: %w", err)
	}
	userJSON, err := json.Marshal(coupon.UserRestrictions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode user restrictions: %w", err)
	}
	return categoryJSON, userJSON, nil
}
