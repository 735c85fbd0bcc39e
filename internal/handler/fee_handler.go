package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feeflow/feeflow-api/internal/models"
	"github.com/feeflow/feeflow-api/internal/service"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
	"github.com/feeflow/feeflow-api/pkg/response"
)

// FeeHandler exposes fee record endpoints.
type FeeHandler struct {
	billing *service.BillingService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(billing *service.BillingService) *FeeHandler {
	return &FeeHandler{billing: billing}
}

// Generate godoc
// @Summary Run a fee generation pass for a billing period
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.GenerateFeesRequest true "Billing period"
// @Success 200 {object} response.Envelope
// @Router /fees/generate [post]
func (h *FeeHandler) Generate(c *gin.Context) {
	var req service.GenerateFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.billing.GenerateFeesForPeriod(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// List godoc
// @Summary List fee records
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by student"
// @Param classId query string false "Filter by class"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param status query string false "Filter by status"
// @Param month query int false "Billing month"
// @Param year query int false "Billing year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	var filter models.FeeFilter
	filter.StudentID = c.Query("studentId")
	filter.ClassID = c.Query("classId")
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.Status = models.FeeStatus(c.Query("status"))
	if month, err := strconv.Atoi(c.Query("month")); err == nil {
		filter.Month = month
	}
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	records, pagination, err := h.billing.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get a fee record
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee record ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id} [get]
func (h *FeeHandler) Get(c *gin.Context) {
	record, err := h.billing.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Pay godoc
// @Summary Record a payment against a fee record
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee record ID"
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/pay [post]
func (h *FeeHandler) Pay(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	record, err := h.billing.RecordPayment(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Waive godoc
// @Summary Waive a fee record
// @Tags Fees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee record ID"
// @Param payload body service.WaiveFeeRequest false "Waive payload"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/waive [post]
func (h *FeeHandler) Waive(c *gin.Context) {
	var req service.WaiveFeeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	record, err := h.billing.Waive(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Payments godoc
// @Summary List payments applied against a fee record
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee record ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/payments [get]
func (h *FeeHandler) Payments(c *gin.Context) {
	payments, err := h.billing.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Reminders godoc
// @Summary List a fee record's reminder log
// @Tags Fees
// @Produce json
// @Security BearerAuth
// @Param id path string true "Fee record ID"
// @Success 200 {object} response.Envelope
// @Router /fees/{id}/reminders [get]
func (h *FeeHandler) Reminders(c *gin.Context) {
	reminders, err := h.billing.ListReminderLog(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reminders, nil)
}
