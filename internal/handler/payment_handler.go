package handler

import (
	"errors"
	"log"
	"net/http"

	"labbooking/internal/middleware"
	"labbooking/internal/payment"
	"labbooking/internal/service"
	"labbooking/pkg/response"

	"github.com/gin-gonic/gin"
)

type ClientStatusDTO struct {
	Status string `json:"status"`
}

type PaymentHandler struct {
	reconciliationService service.ReconciliationService
	jwtSecret             []byte
}

func NewPaymentHandler(reconciliationService service.ReconciliationService, jwtSecret []byte) *PaymentHandler {
	return &PaymentHandler{reconciliationService: reconciliationService, jwtSecret: jwtSecret}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin)

	payments := router.Group("/api/payments")
	{
		payments.POST("/notification", h.HandleNotification)
		payments.PUT("/:orderId/client-status", h.ReportClientStatus)
		payments.POST("/:orderId/sync", admin, h.Resync)
		payments.GET("/reconcile-stats", admin, h.Stats)
	}
}

// HandleNotification receives the gateway's asynchronous status callback
// @Summary      Payment gateway notification
// @Description  Verifies the signature and reconciles the payment. Unknown order ids are acknowledged so the gateway stops retrying.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        notification  body      payment.Notification  true  "Gateway notification"
// @Success      200           {object}  map[string]string
// @Failure      400           {object}  response.Response
// @Failure      401           {object}  response.Response
// @Failure      500           {object}  response.Response
// @Router       /api/payments/notification [post]
func (h *PaymentHandler) HandleNotification(c *gin.Context) {
	var n payment.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		log.Printf("[payment][handler] bad notification body err=%v", err)
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid notification body"))
		return
	}

	result, err := h.reconciliationService.HandleNotification(c.Request.Context(), n)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success", "outcome": result.Outcome})
	case errors.Is(err, service.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "invalid signature"))
	case errors.Is(err, service.ErrNotFound):
		log.Printf("[payment][handler] notification for unknown order_id=%s acknowledged", n.OrderID)
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	default:
		respondError(c, err)
	}
}

// ReportClientStatus records the status the customer's browser saw
// @Summary      Report client-side payment status
// @Description  Informational only; the payment status is never changed by this call
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        orderId  path      string           true  "Order reference"
// @Param        request  body      ClientStatusDTO  true  "Client status"
// @Success      200      {object}  response.Response{data=service.ClientStatusResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/payments/{orderId}/client-status [put]
func (h *PaymentHandler) ReportClientStatus(c *gin.Context) {
	var req ClientStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	result, err := h.reconciliationService.ReportClientStatus(c.Request.Context(), c.Param("orderId"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Resync pulls the authoritative status from the gateway
// @Summary      Resync payment with gateway
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        orderId  path      string  true  "Order reference"
// @Success      200      {object}  response.Response{data=service.ReconcileResult}
// @Failure      404      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/payments/{orderId}/sync [post]
func (h *PaymentHandler) Resync(c *gin.Context) {
	result, err := h.reconciliationService.Resync(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Stats returns reconciliation outcome counters since process start
// @Summary      Reconciliation counters
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ReconcileStats}
// @Router       /api/payments/reconcile-stats [get]
func (h *PaymentHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.reconciliationService.Stats()))
}
