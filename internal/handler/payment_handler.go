package handler

import (
	"net/http"

	"taxaudit/internal/middleware"
	"taxaudit/internal/repository"
	"taxaudit/internal/service"
	"taxaudit/pkg/pagination"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PaymentHandler struct {
	auditService service.AuditService
}

func NewPaymentHandler(auditService service.AuditService) *PaymentHandler {
	return &PaymentHandler{auditService: auditService}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/api/payments")
	payments.Use(middleware.RequireRole("admin", "auditor"))
	{
		payments.GET("", h.ListPayments)
		payments.POST("/process", h.ProcessPayments)
	}

	audits := router.Group("/api/audits")
	audits.Use(middleware.RequireRole("admin", "auditor"))
	{
		audits.GET("", h.ListAudits)
		audits.POST("/run", h.RunAudits)
	}
}

// ListPayments returns paginated payments filtered by client and status
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        page       query  int     false  "Page number (default: 1)"
// @Param        limit      query  int     false  "Items per page (default: 20)"
// @Param        client_id  query  string  false  "Filter by client"
// @Param        status     query  string  false  "Filter by status: PENDING, AUDITED, FAILED"
// @Success      200  {object}  response.Response
// @Router       /api/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	params := pagination.Parse(c)

	filter := repository.PaymentFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}
	if raw := c.Query("client_id"); raw != "" {
		clientID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid client_id"))
			return
		}
		filter.ClientID = &clientID
	}

	payments, total, err := h.auditService.ListPayments(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, payments, params.Page, params.Limit, total))
}

// ProcessPayments registers a batch of imported payment descriptors for a client
// @Summary      Register payment batch
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.ProcessPaymentsRequest  true  "Payment batch"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/payments/process [post]
func (h *PaymentHandler) ProcessPayments(c *gin.Context) {
	var req service.ProcessPaymentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payments, err := h.auditService.ProcessPayments(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payments))
}

// ListAudits returns paginated audit records
// @Summary      List audits
// @Tags         audits
// @Security     BearerAuth
// @Produce      json
// @Param        page   query  int  false  "Page number (default: 1)"
// @Param        limit  query  int  false  "Items per page (default: 20)"
// @Success      200  {object}  response.Response
// @Router       /api/audits [get]
func (h *PaymentHandler) ListAudits(c *gin.Context) {
	params := pagination.Parse(c)

	audits, total, err := h.auditService.ListAudits(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, audits, params.Page, params.Limit, total))
}

// RunAudits audits a batch of payments and reports per-item results.
// Partial failure is normal: a payment with no matching rate rule shows up as
// a failed item without affecting the rest of the batch.
// @Summary      Run audits
// @Tags         audits
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.RunAuditsRequest  true  "Payment IDs"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/audits/run [post]
func (h *PaymentHandler) RunAudits(c *gin.Context) {
	var req service.RunAuditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	paymentIDs := make([]uuid.UUID, 0, len(req.PaymentIDs))
	for _, raw := range req.PaymentIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid payment id: "+raw))
			return
		}
		paymentIDs = append(paymentIDs, id)
	}

	results := h.auditService.AuditPayments(c.Request.Context(), paymentIDs)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, results))
}
