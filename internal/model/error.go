package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON         = "INVALID_JSON"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeCouponNotFound      = "COUPON_NOT_FOUND"
	ErrCodeCouponExists        = "COUPON_EXISTS"
	ErrCodeCouponInvalid       = "COUPON_INVALID"
	ErrCodeGlobalLimitReached  = "GLOBAL_LIMIT_REACHED"
	ErrCodeUserLimitReached    = "USER_LIMIT_REACHED"
	ErrCodeBelowMinimumOrder   = "BELOW_MINIMUM_ORDER"
	ErrCodeCategoryMismatch    = "CATEGORY_MISMATCH"
	ErrCodeNotEligible         = "NOT_ELIGIBLE"
	ErrCodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	ErrCodeUnauthorised        = "UNAUTHORIZED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// DomainError is a business error with a stable code for API mapping.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrCouponNotFound      = NewDomainError(ErrCodeCouponNotFound, "Coupon code does not exist")
	ErrCouponExists        = NewDomainError(ErrCodeCouponExists, "A coupon with this code already exists")
	ErrCouponInvalid       = NewDomainError(ErrCodeCouponInvalid, "Coupon is inactive or has expired")
	ErrGlobalLimitReached  = NewDomainError(ErrCodeGlobalLimitReached, "Coupon has reached its total usage limit")
	ErrUserLimitReached    = NewDomainError(ErrCodeUserLimitReached, "You have already used this coupon the maximum number of times")
	ErrBelowMinimumOrder   = NewDomainError(ErrCodeBelowMinimumOrder, "Eligible order value is below the coupon minimum")
	ErrCategoryMismatch    = NewDomainError(ErrCodeCategoryMismatch, "Coupon does not apply to any item in the cart")
	ErrNotEligible         = NewDomainError(ErrCodeNotEligible, "Coupon cannot be used for this order")
	ErrConcurrencyConflict = NewDomainError(ErrCodeConcurrencyConflict, "Coupon redemption conflicted with a concurrent request")
)

// ValidationError reports malformed administrative input on the
// create/update path. Field names the offending attribute.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
