package handler

import (
	"net/http"
	"time"

	"taxaudit/internal/middleware"
	"taxaudit/internal/service"
	"taxaudit/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	reports.Use(middleware.RequireRole("admin", "auditor"))
	{
		reports.GET("/retentions", h.RetentionReport)
		reports.GET("/stats", h.Stats)
	}
}

// RetentionReport aggregates audited withholdings for a client over a period
// @Summary      Retention period report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query  string  true  "Client ID"
// @Param        start      query  string  true  "Period start (YYYY-MM-DD)"
// @Param        end        query  string  true  "Period end (YYYY-MM-DD)"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/reports/retentions [get]
func (h *ReportHandler) RetentionReport(c *gin.Context) {
	clientID, err := uuid.Parse(c.Query("client_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid client_id"))
		return
	}

	start, err := time.Parse("2006-01-02", c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid start date (expected YYYY-MM-DD)"))
		return
	}
	end, err := time.Parse("2006-01-02", c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid end date (expected YYYY-MM-DD)"))
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "End date must not precede start date"))
		return
	}

	report, err := h.reportService.GenerateReport(c.Request.Context(), clientID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// Stats summarizes payment processing progress
// @Summary      Retention stats
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        client_id  query  string  false  "Filter by client"
// @Success      200  {object}  response.Response
// @Router       /api/reports/stats [get]
func (h *ReportHandler) Stats(c *gin.Context) {
	var clientID *uuid.UUID
	if raw := c.Query("client_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid client_id"))
			return
		}
		clientID = &id
	}

	stats, err := h.reportService.GetStats(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
