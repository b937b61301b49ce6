package handler

import (
	"log"
	"net/http"

	"labbooking/internal/middleware"
	"labbooking/internal/service"
	"labbooking/pkg/pagination"
	"labbooking/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
	jwtSecret      []byte
}

func NewRequestHandler(requestService service.RequestService, jwtSecret []byte) *RequestHandler {
	return &RequestHandler{requestService: requestService, jwtSecret: jwtSecret}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin)
	member := middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin, middleware.RoleUser)

	requests := router.Group("/api/requests")
	{
		requests.POST("", h.CreateRequest)
		requests.GET("", admin, h.ListRequests)
		requests.GET("/:id", member, h.GetRequest)
		requests.POST("/:id/payments", member, h.RetryPayment)
		requests.PUT("/:id/approve", admin, h.ApproveRequest)
		requests.PUT("/:id/reject", admin, h.RejectRequest)
		requests.PUT("/:id/cancel", member, h.CancelRequest)
	}
}

// CreateRequest submits a borrowing request and opens its payment
// @Summary      Create borrowing request
// @Description  Prices the line items server-side, reserves stock and opens a gateway transaction
// @Tags         requests
// @Accept       json
// @Produce      json
// @Param        request  body      service.CreateRequestDTO  true  "Borrowing request"
// @Success      201      {object}  response.Response{data=service.CreateRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request body: "+err.Error()))
		return
	}

	result, err := h.requestService.CreateRequest(c.Request.Context(), req)
	if err != nil {
		h.respondPaymentError(c, result, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// RetryPayment opens a fresh payment for a request whose last attempt failed
// @Summary      Retry payment
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      201  {object}  response.Response{data=service.CreateRequestResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/payments [post]
func (h *RequestHandler) RetryPayment(c *gin.Context) {
	result, err := h.requestService.RetryPayment(c.Request.Context(), c.Param("id"), callerFrom(c))
	if err != nil {
		h.respondPaymentError(c, result, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// respondPaymentError keeps the stored ids in the body when the request was
// saved but the gateway call failed, so the client can retry the payment.
func (h *RequestHandler) respondPaymentError(c *gin.Context, result service.CreateRequestResponse, err error) {
	code := mapServiceError(err)
	if result.RequestID == "" {
		c.JSON(code, response.Error(code, err.Error()))
		return
	}
	log.Printf("[request][handler] payment not opened request_id=%s payment_id=%s err=%v", result.RequestID, result.PaymentID, err)
	c.JSON(code, response.ErrorWithData(code, err.Error(), result))
}

// ListRequests returns requests, optionally filtered by status
// @Summary      List requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending_payment, pending_review, approved, rejected, cancelled"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)

	requests, total, err := h.requestService.ListRequests(c.Request.Context(), service.RequestFilter{
		Status: c.Query("status"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.List("requests", requests, total, p.Page, p.Limit)))
}

// GetRequest returns one request with its line items
// @Summary      Get request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	result, err := h.requestService.GetRequest(c.Request.Context(), c.Param("id"), callerFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ApproveRequest approves a paid request
// @Summary      Approve request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true   "Request ID"
// @Param        request  body      service.AdminDecisionDTO  false  "Admin notes"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Router       /api/requests/{id}/approve [put]
func (h *RequestHandler) ApproveRequest(c *gin.Context) {
	req := bindDecision(c)
	if err := h.requestService.ApproveRequest(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.AdminNotes); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Request approved"}))
}

// RejectRequest rejects a paid request; adminNotes is required
// @Summary      Reject request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Request ID"
// @Param        request  body      service.AdminDecisionDTO  true  "Reason"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Router       /api/requests/{id}/reject [put]
func (h *RequestHandler) RejectRequest(c *gin.Context) {
	req := bindDecision(c)
	if err := h.requestService.RejectRequest(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.AdminNotes); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Request rejected"}))
}

// CancelRequest cancels a request that is not yet decided
// @Summary      Cancel request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true   "Request ID"
// @Param        request  body      service.AdminDecisionDTO  false  "Notes"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Router       /api/requests/{id}/cancel [put]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	req := bindDecision(c)
	if err := h.requestService.CancelRequest(c.Request.Context(), c.Param("id"), callerFrom(c), req.AdminNotes); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Request cancelled"}))
}

func callerFrom(c *gin.Context) service.Caller {
	return service.Caller{ID: middleware.UserID(c), Admin: middleware.UserRole(c) == middleware.RoleAdmin}
}

// bindDecision reads an optional {adminNotes} body; an empty body is allowed.
func bindDecision(c *gin.Context) service.AdminDecisionDTO {
	var req service.AdminDecisionDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		req.AdminNotes = ""
	}
	return req
}
