package handler

import (
	"net/http"

	"labbooking/internal/middleware"
	"labbooking/internal/service"
	"labbooking/pkg/pagination"
	"labbooking/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
	jwtSecret        []byte
}

func NewInventoryHandler(inventoryService service.InventoryService, jwtSecret []byte) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, jwtSecret: jwtSecret}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	member := middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin, middleware.RoleUser)
	admin := middleware.RequireRole(h.jwtSecret, middleware.RoleAdmin)

	items := router.Group("/api/items")
	{
		items.GET("", member, h.ListItems)
		items.POST("", admin, h.CreateItem)
		items.PUT("/:id", admin, h.UpdateItem)
		items.DELETE("/:id", admin, h.DeleteItem)
	}
}

// ListItems handles retrieving the borrowable catalog
// @Summary      List items
// @Description  Retrieves a paginated list of tools and reagents with current stock
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        kind    query     string  false  "tool or reagent"
// @Param        search  query     string  false  "Search by item name"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      400     {object}  response.Response
// @Router       /api/items [get]
func (h *InventoryHandler) ListItems(c *gin.Context) {
	p := pagination.Parse(c)

	items, total, err := h.inventoryService.ListItems(c.Request.Context(), service.ItemFilter{
		Kind:   c.Query("kind"),
		Search: c.Query("search"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.List("items", items, total, p.Page, p.Limit)))
}

// CreateItem adds a tool or reagent to the catalog
// @Summary      Create item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateItemDTO  true  "Create Item Payload"
// @Success      201      {object}  response.Response{data=service.ItemResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/items [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req service.CreateItemDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.inventoryService.CreateItem(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// UpdateItem changes an item's name, price or stock
// @Summary      Update item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Item ID"
// @Param        payload  body      service.UpdateItemDTO  true  "Update Item Payload"
// @Success      200      {object}  response.Response{data=service.ItemResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/items/{id} [put]
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateItemDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.inventoryService.UpdateItem(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// DeleteItem removes an item from the catalog softly
// @Summary      Delete item
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/items/{id} [delete]
func (h *InventoryHandler) DeleteItem(c *gin.Context) {
	if err := h.inventoryService.DeleteItem(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]string{"message": "Item deleted"}))
}
