// Package events handles fire-and-forget event emission for graph changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/banyan/internal/tracing"
	"github.com/Ramsey-B/banyan/pkg/kafka"
	"github.com/Ramsey-B/banyan/pkg/models"
)

// Emitter emits notifications and tree events. Every method is
// fire-and-forget: failures are logged and never propagated, so a dead
// broker cannot roll back a graph mutation.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// Notify sends a notification to the given recipients
func (e *Emitter) Notify(ctx context.Context, recipients []string, notificationType string, payload any) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Notify")
	defer span.End()

	if e.producer == nil || len(recipients) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"type": notificationType}).Warn("Failed to marshal notification payload")
		return
	}

	event := &kafka.NotificationEvent{
		Recipients: recipients,
		Type:       notificationType,
		Payload:    data,
	}
	if err := e.producer.PublishNotification(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"type": notificationType}).Warn("Failed to emit notification")
	}
}

// EmitTreeRepaired emits a tree.repaired event with the repair report
func (e *Emitter) EmitTreeRepaired(ctx context.Context, report models.RepairReport, actorID string) {
	e.emitTree(ctx, "tree.repaired", report.FamilyCode, actorID, report)
}

// EmitTreeLinked emits a tree.linked event for an accepted link request
func (e *Emitter) EmitTreeLinked(ctx context.Context, link *models.LinkRequest, actorID string) {
	e.emitTree(ctx, "tree.linked", link.ReceiverFamilyCode, actorID, link)
}

// EmitTreeMerged emits a tree.merged event for an executed merge
func (e *Emitter) EmitTreeMerged(ctx context.Context, result *models.ExecutionResult, actorID string) {
	e.emitTree(ctx, "tree.merged", result.PrimaryFamilyCode, actorID, result)
}

// EmitNodeRemoved emits a node.removed event
func (e *Emitter) EmitNodeRemoved(ctx context.Context, familyCode string, personID int, actorID string) {
	e.emitTree(ctx, "node.removed", familyCode, actorID, map[string]any{"person_id": personID})
}

func (e *Emitter) emitTree(ctx context.Context, eventType, familyCode, actorID string, payload any) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitTree")
	defer span.End()

	if e.producer == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_type": eventType}).Warn("Failed to marshal tree event payload")
		return
	}

	event := &kafka.TreeEvent{
		EventType:  eventType,
		FamilyCode: familyCode,
		ActorID:    actorID,
		Payload:    data,
	}
	if err := e.producer.PublishTreeEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_type": eventType}).Warn("Failed to emit tree event")
	}
}
