package handler

import (
	"net/http"

	"labbooking/internal/middleware"
	"labbooking/internal/service"
	"labbooking/pkg/pagination"
	"labbooking/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	jwtSecret    []byte
}

func NewAuditHandler(auditService service.AuditService, jwtSecret []byte) *AuditHandler {
	return &AuditHandler{auditService: auditService, jwtSecret: jwtSecret}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated lifecycle audit entries
// @Summary      Get audit logs
// @Description  Newest first; filters narrow by entity, action or actor
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entityId  query     string  false  "Entity ID"
// @Param        action    query     string  false  "Action, e.g. PAYMENT_ANOMALY"
// @Param        actorId   query     string  false  "Actor ID"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditLogFilter{
		EntityID: c.Query("entityId"),
		Action:   c.Query("action"),
		ActorID:  c.Query("actorId"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.List("logs", logs, total, p.Page, p.Limit)))
}
