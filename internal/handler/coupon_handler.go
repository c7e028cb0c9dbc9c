package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CouponHandler handles coupon-related HTTP requests.
type CouponHandler struct {
	service service.CouponService
	logger  zerolog.Logger
}

// NewCouponHandler creates a new coupon handler.
func NewCouponHandler(service service.CouponService, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		logger:  logger.With().Str("handler", "coupon").Logger(),
	}
}

// Create handles POST /api/coupons requests.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	created, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/coupons/{code} requests.
func (h *CouponHandler) Update(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req model.CouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	updated, err := h.service.Update(r.Context(), code, &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/coupons/{code} requests.
func (h *CouponHandler) Delete(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if err := h.service.Delete(r.Context(), code); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetByCode handles GET /api/coupons/{code} requests.
func (h *CouponHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	c, err := h.service.GetByCode(r.Context(), code)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// List handles GET /api/coupons requests. With userId or orderValue query
// parameters it returns the eligible-coupons listing instead of the plain
// discovery listing.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("userId")
	orderValueStr := query.Get("orderValue")

	if userID == "" && orderValueStr == "" {
		coupons, err := h.service.List(r.Context())
		if err != nil {
			writeDomainError(w, err, h.logger)
			return
		}
		writeJSON(w, http.StatusOK, coupons)
		return
	}

	orderValue := 0.0
	if orderValueStr != "" {
		parsed, err := strconv.ParseFloat(orderValueStr, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "orderValue must be a non-negative number", h.logger)
			return
		}
		orderValue = parsed
	}

	coupons, err := h.service.EligibleForUser(r.Context(), userID, orderValue)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, coupons)
}

// Preview handles POST /api/coupons/preview requests.
func (h *CouponHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req model.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	resp, err := h.service.Preview(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Redeem handles POST /api/coupons/redeem requests.
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req model.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	resp, err := h.service.Redeem(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
