package service

import (
	"context"
	"encoding/json"
	"log"

	"labbooking/internal/model"
	"labbooking/internal/repository"
)

// Lifecycle event names pushed to dashboards.
const (
	EventRequestCreated       = "request.created"
	EventRequestStatusChanged = "request.status_changed"
	EventPaymentUpdated       = "payment.updated"
	EventScheduleCreated      = "schedule.created"
	EventScheduleUpdated      = "schedule.updated"
	EventInventoryUpdated     = "inventory.updated"
)

// EventPublisher fans lifecycle events out after the owning transaction commits.
type EventPublisher interface {
	Publish(event string, data map[string]interface{})
}

type event struct {
	name string
	data map[string]interface{}
}

func publish(p EventPublisher, events ...event) {
	if p == nil {
		return
	}
	for _, e := range events {
		p.Publish(e.name, e.data)
	}
}

// writeAudit records one lifecycle transition inside the caller's transaction.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actorID, action, entityID, entityName string, details map[string]interface{}) error {
	if repo == nil {
		return nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		log.Printf("[audit] details marshal failed action=%s entity_id=%s err=%v", action, entityID, err)
		raw = []byte("{}")
	}
	return repo.Log(ctx, &model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	})
}
