package handler

import (
	"net/http"

	"labbooking/internal/middleware"
	"labbooking/internal/service"
	"labbooking/pkg/pagination"
	"labbooking/pkg/response"

	"github.com/gin-gonic/gin"
)

type ScheduleStatusDTO struct {
	Status string `json:"status"`
}

type ScheduleHandler struct {
	scheduleService service.ScheduleService
	jwtSecret       []byte
}

func NewScheduleHandler(scheduleService service.ScheduleService, jwtSecret []byte) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService, jwtSecret: jwtSecret}
}

func (h *ScheduleHandler) RegisterRoutes(router *gin.RouterGroup) {
	schedules := router.Group("/api/schedules")
	schedules.Use(middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin))
	{
		schedules.GET("", h.ListSchedules)
		schedules.GET("/:id", h.GetSchedule)
		schedules.PUT("/:id/status", h.SetStatus)
	}
}

// ListSchedules returns lab visits; finished visits are completed first
// @Summary      List schedules
// @Tags         schedules
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "scheduled, completed, cancelled, no_show"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/schedules [get]
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	p := pagination.Parse(c)

	schedules, total, err := h.scheduleService.ListSchedules(c.Request.Context(), service.ScheduleFilter{
		Status: c.Query("status"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.List("schedules", schedules, total, p.Page, p.Limit)))
}

// GetSchedule returns one lab visit
// @Summary      Get schedule
// @Tags         schedules
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Schedule ID (SCH-000001)"
// @Success      200  {object}  response.Response{data=service.ScheduleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/schedules/{id} [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	result, err := h.scheduleService.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// SetStatus overrides a schedule's status
// @Summary      Set schedule status
// @Tags         schedules
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string             true  "Schedule ID"
// @Param        request  body      ScheduleStatusDTO  true  "New status"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/schedules/{id}/status [put]
func (h *ScheduleHandler) SetStatus(c *gin.Context) {
	var req ScheduleStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	id := c.Param("id")
	if err := h.scheduleService.SetStatus(c.Request.Context(), id, req.Status, middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"id":      id,
		"status":  req.Status,
		"message": "Schedule status updated",
	}))
}
