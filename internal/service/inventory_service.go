package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"labbooking/internal/model"
	"labbooking/internal/repository"
	"labbooking/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type CreateItemDTO struct {
	Kind        string  `json:"kind" binding:"required,oneof=tool reagent"`
	Name        string  `json:"name" binding:"required"`
	Price       float64 `json:"price" binding:"min=0"`
	PricingUnit string  `json:"pricingUnit"` // day, unit; defaults by kind
	Stock       int     `json:"stock" binding:"min=0"`
}

// UpdateItemDTO is a partial update; nil fields are left unchanged.
type UpdateItemDTO struct {
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	PricingUnit *string  `json:"pricingUnit"`
	Stock       *int     `json:"stock"`
}

type ItemResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	PricingUnit string  `json:"pricingUnit"`
	Stock       int     `json:"stock"`
}

type ItemFilter struct {
	Kind   string
	Search string
	Page   int
	Limit  int
}

// InventoryService maintains the catalog of borrowable tools and reagents.
type InventoryService interface {
	ListItems(ctx context.Context, filter ItemFilter) ([]ItemResponse, int64, error)
	CreateItem(ctx context.Context, actorID string, req CreateItemDTO) (ItemResponse, error)
	UpdateItem(ctx context.Context, actorID, id string, req UpdateItemDTO) (ItemResponse, error)
	DeleteItem(ctx context.Context, actorID, id string) error
}

type inventoryService struct {
	inventoryRepo repository.InventoryRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	events        EventPublisher
}

func NewInventoryService(
	inventoryRepo repository.InventoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
) InventoryService {
	return &inventoryService{
		inventoryRepo: inventoryRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		events:        events,
	}
}

func (s *inventoryService) ListItems(ctx context.Context, filter ItemFilter) ([]ItemResponse, int64, error) {
	if filter.Kind != "" && filter.Kind != model.ItemKindTool && filter.Kind != model.ItemKindReagent {
		return nil, 0, validationError("kind must be tool or reagent")
	}
	p := pagination.Normalize(filter.Page, filter.Limit)
	filter.Page, filter.Limit = p.Page, p.Limit

	items, total, err := s.inventoryRepo.List(ctx, filter.Kind, strings.TrimSpace(filter.Search), filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, upstreamError("failed to list items", err)
	}

	res := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		res = append(res, toItemResponse(item))
	}
	return res, total, nil
}

func (s *inventoryService) CreateItem(ctx context.Context, actorID string, req CreateItemDTO) (ItemResponse, error) {
	item := model.InventoryItem{
		Kind:        req.Kind,
		Name:        strings.TrimSpace(req.Name),
		PricingUnit: req.PricingUnit,
		Stock:       req.Stock,
	}
	if item.PricingUnit == "" {
		item.PricingUnit = defaultPricingUnit(item.Kind)
	}
	if err := validateItem(item.Kind, item.Name, item.PricingUnit, req.Price, item.Stock); err != nil {
		return ItemResponse{}, err
	}
	item.Price = decimal.NewFromFloat(req.Price).Round(2)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.inventoryRepo.Create(txCtx, &item); err != nil {
			return upstreamError("failed to create item", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID, model.ActionCreateItem, item.ID.String(), item.Name, map[string]interface{}{
			"kind":         item.Kind,
			"price":        item.Price.StringFixed(2),
			"pricing_unit": item.PricingUnit,
			"stock":        item.Stock,
		})
	})
	if err != nil {
		return ItemResponse{}, err
	}

	log.Printf("[inventory][service] item created id=%s kind=%s", item.ID, item.Kind)
	publish(s.events, event{EventInventoryUpdated, map[string]interface{}{"itemId": item.ID.String(), "stock": item.Stock}})
	return toItemResponse(item), nil
}

// UpdateItem locks the row so stock edits serialize with reservations made
// by request creation and release.
func (s *inventoryService) UpdateItem(ctx context.Context, actorID, id string, req UpdateItemDTO) (ItemResponse, error) {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return ItemResponse{}, validationError("invalid item id")
	}

	var updated model.InventoryItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.inventoryRepo.FindByIDForUpdate(txCtx, itemID)
		if err != nil {
			return storeError("item", err)
		}

		changes := map[string]interface{}{}
		price, _ := item.Price.Float64()
		if req.Name != nil {
			item.Name = strings.TrimSpace(*req.Name)
			changes["name"] = item.Name
		}
		if req.Price != nil {
			price = *req.Price
			changes["price"] = price
		}
		if req.PricingUnit != nil {
			item.PricingUnit = *req.PricingUnit
			changes["pricing_unit"] = item.PricingUnit
		}
		if req.Stock != nil {
			changes["stock_before"] = item.Stock
			item.Stock = *req.Stock
			changes["stock"] = item.Stock
		}
		if err := validateItem(item.Kind, item.Name, item.PricingUnit, price, item.Stock); err != nil {
			return err
		}
		if req.Price != nil {
			item.Price = decimal.NewFromFloat(price).Round(2)
		}

		if err := s.inventoryRepo.Update(txCtx, item); err != nil {
			return upstreamError("failed to update item", err)
		}
		updated = *item
		return writeAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateItem, item.ID.String(), item.Name, changes)
	})
	if err != nil {
		return ItemResponse{}, err
	}

	publish(s.events, event{EventInventoryUpdated, map[string]interface{}{"itemId": updated.ID.String(), "stock": updated.Stock}})
	return toItemResponse(updated), nil
}

func (s *inventoryService) DeleteItem(ctx context.Context, actorID, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return validationError("invalid item id")
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.inventoryRepo.FindByIDForUpdate(txCtx, itemID)
		if err != nil {
			return storeError("item", err)
		}
		if err := s.inventoryRepo.Delete(txCtx, itemID); err != nil {
			return upstreamError("failed to delete item", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteItem, item.ID.String(), item.Name, map[string]interface{}{"deleted": true})
	})
}

func defaultPricingUnit(kind string) string {
	if kind == model.ItemKindTool {
		return model.PricingPerDay
	}
	return model.PricingPerUnit
}

func validateItem(kind, name, unit string, price float64, stock int) error {
	switch {
	case kind != model.ItemKindTool && kind != model.ItemKindReagent:
		return validationError("kind must be tool or reagent")
	case name == "":
		return validationError("name is required")
	case unit != model.PricingPerDay && unit != model.PricingPerUnit:
		return validationError("pricingUnit must be day or unit")
	case price < 0:
		return validationError("price must not be negative")
	case stock < 0:
		return validationError(fmt.Sprintf("stock must not be negative, got %d", stock))
	}
	return nil
}

func toItemResponse(item model.InventoryItem) ItemResponse {
	price, _ := item.Price.Float64()
	return ItemResponse{
		ID:          item.ID.String(),
		Kind:        item.Kind,
		Name:        item.Name,
		Price:       price,
		PricingUnit: item.PricingUnit,
		Stock:       item.Stock,
	}
}
