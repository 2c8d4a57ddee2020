package handler

import (
	"net/http"

	"taxaudit/internal/middleware"
	"taxaudit/internal/service"
	"taxaudit/pkg/pagination"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
)

type RateHandler struct {
	rateService service.RateService
}

func NewRateHandler(rateService service.RateService) *RateHandler {
	return &RateHandler{rateService: rateService}
}

func (h *RateHandler) RegisterRoutes(router *gin.RouterGroup) {
	rates := router.Group("/api/retention-rates")
	rates.Use(middleware.RequireRole("admin", "auditor"))
	{
		rates.GET("", h.ListRates)
		rates.POST("", middleware.RequireRole("admin"), h.CreateRate)
		rates.PUT("/:id", middleware.RequireRole("admin"), h.UpdateRate)
		rates.DELETE("/:id", middleware.RequireRole("admin"), h.DeleteRate)
	}
}

// ListRates returns paginated retention rate rules
// @Summary      List retention rates
// @Tags         retention-rates
// @Security     BearerAuth
// @Produce      json
// @Param        page   query  int  false  "Page number (default: 1)"
// @Param        limit  query  int  false  "Items per page (default: 20)"
// @Success      200  {object}  response.Response
// @Router       /api/retention-rates [get]
func (h *RateHandler) ListRates(c *gin.Context) {
	params := pagination.Parse(c)

	rates, total, err := h.rateService.GetRates(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, rates, params.Page, params.Limit, total))
}

// CreateRate creates a retention rate rule for an activity code
// @Summary      Create retention rate
// @Tags         retention-rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateRetentionRateRequest  true  "Rate payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/retention-rates [post]
func (h *RateHandler) CreateRate(c *gin.Context) {
	var req service.CreateRetentionRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.rateService.CreateRate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rate))
}

// UpdateRate updates an existing retention rate rule
// @Summary      Update retention rate
// @Tags         retention-rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                              true  "Rate ID"
// @Param        payload  body  service.UpdateRetentionRateRequest  true  "Update payload"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/retention-rates/{id} [put]
func (h *RateHandler) UpdateRate(c *gin.Context) {
	var req service.UpdateRetentionRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rate, err := h.rateService.UpdateRate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rate))
}

// DeleteRate deletes a retention rate rule
// @Summary      Delete retention rate
// @Tags         retention-rates
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Rate ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/retention-rates/{id} [delete]
func (h *RateHandler) DeleteRate(c *gin.Context) {
	if err := h.rateService.DeleteRate(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Retention rate deleted successfully"}))
}
