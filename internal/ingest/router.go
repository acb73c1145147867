package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/winlife/gamelytics/internal/schema"
	"github.com/winlife/gamelytics/internal/telemetry"
)

// Outcome is the caller-visible result of processing one event.
type Outcome int

const (
	// Accepted: committed to the main store (snapshot upsert attempted).
	Accepted Outcome = iota
	// Rejected: routed to the errored store.
	Rejected
	// DebugStored: stored on the debug path only, never committed.
	DebugStored
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case DebugStored:
		return "debug"
	}
	return "unknown"
}

// Router decides the fate of every incoming event: validate parameters and
// user properties against their schema documents, then write the event to
// exactly one of the valid/errored/debug stores. An event is never dropped.
type Router struct {
	schemas   schema.Store
	events    *EventStore
	snapshots *SnapshotStore
	metrics   *telemetry.IngestMetrics
	now       func() time.Time
}

func NewRouter(schemas schema.Store, events *EventStore, snapshots *SnapshotStore, metrics *telemetry.IngestMetrics) *Router {
	return &Router{
		schemas:   schemas,
		events:    events,
		snapshots: snapshots,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Process runs the full pipeline for one event. The returned error is only
// non-nil when even the fallback errored/debug write failed; validation
// failures surface as Rejected, not as an error.
func (r *Router) Process(ctx context.Context, ev RawEvent) (Outcome, error) {
	paramErr := r.validateParameters(ctx, ev)
	propErr := r.validateUserProperties(ctx, ev)

	if ev.IsDebug {
		rec := &DebugGameEvent{
			UserID:            ev.UserID,
			DeviceID:          ev.DeviceID,
			Timestamp:         ev.Timestamp,
			EventName:         ev.EventName,
			RawParameters:     mustJSON(ev.Parameters),
			RawUserProperties: mustJSON(ev.UserProperties),
			IsValid:           paramErr == nil && propErr == nil,
			ValidationError:   joinReasons(paramErr, propErr),
			ReceivedTimestamp: r.now().UnixMilli(),
		}
		if err := r.events.SaveDebug(ctx, rec); err != nil {
			return DebugStored, fmt.Errorf("save debug event: %w", err)
		}
		r.metrics.Debug(ctx, ev.EventName)
		return DebugStored, nil
	}

	if paramErr != nil || propErr != nil {
		slog.Warn("event failed validation",
			"event", ev.EventName, "user", ev.UserID, "reason", joinReasons(paramErr, propErr))
		return r.reject(ctx, ev, joinReasons(paramErr, propErr), "validation")
	}

	params, err := json.Marshal(orEmpty(ev.Parameters))
	if err != nil {
		return r.reject(ctx, ev, fmt.Sprintf("serialize parameters: %v", err), "serialization")
	}
	props, err := json.Marshal(orEmpty(ev.UserProperties))
	if err != nil {
		return r.reject(ctx, ev, fmt.Sprintf("serialize user properties: %v", err), "serialization")
	}

	rec := &GameEvent{
		UserID:         ev.UserID,
		DeviceID:       ev.DeviceID,
		Timestamp:      ev.Timestamp,
		EventName:      ev.EventName,
		Parameters:     datatypes.JSON(params),
		UserProperties: datatypes.JSON(props),
	}
	if err := r.events.SaveValid(ctx, rec); err != nil {
		slog.Error("save game event failed", "event", ev.EventName, "err", err)
		return r.reject(ctx, ev, fmt.Sprintf("persist event: %v", err), "storage")
	}

	if strings.TrimSpace(ev.UserID) == "" {
		slog.Warn("event has blank userId; skipping snapshot update", "event", ev.EventName)
	} else if err := r.snapshots.Upsert(ctx, ev.UserID, ev.DeviceID, datatypes.JSON(props), ev.Timestamp); err != nil {
		// The event already committed to the main store, and an event lands in
		// exactly one store: a failed snapshot upsert cannot re-route it to the
		// errored path, so it only warns.
		slog.Warn("player snapshot upsert failed", "user", ev.UserID, "err", err)
	}
	r.metrics.Accepted(ctx, ev.EventName)
	return Accepted, nil
}

func (r *Router) validateParameters(ctx context.Context, ev RawEvent) error {
	if strings.TrimSpace(ev.EventName) == "" {
		return fmt.Errorf("event name is empty")
	}
	doc, ok, err := r.schemas.EventSchema(ctx, ev.EventName)
	if err != nil {
		return fmt.Errorf("load event schema: %w", err)
	}
	if !ok {
		// No schema declared for this event name: accept anything.
		return nil
	}
	if verr := Validate(ev.Parameters, doc); verr != nil {
		return fmt.Errorf("parameters: %w", verr)
	}
	return nil
}

func (r *Router) validateUserProperties(ctx context.Context, ev RawEvent) error {
	doc, ok, err := r.schemas.UserPropertySchema(ctx)
	if err != nil {
		return fmt.Errorf("load user property schema: %w", err)
	}
	if !ok {
		return nil
	}
	if verr := Validate(ev.UserProperties, doc); verr != nil {
		return fmt.Errorf("userProperties: %w", verr)
	}
	return nil
}

func (r *Router) reject(ctx context.Context, ev RawEvent, reason, cause string) (Outcome, error) {
	rec := &ErroredGameEvent{
		UserID:            ev.UserID,
		DeviceID:          ev.DeviceID,
		Timestamp:         ev.Timestamp,
		EventName:         ev.EventName,
		RawParameters:     mustJSON(ev.Parameters),
		RawUserProperties: mustJSON(ev.UserProperties),
		ErrorReason:       reason,
		ReceivedTimestamp: r.now().UnixMilli(),
	}
	if err := r.events.SaveErrored(ctx, rec); err != nil {
		// No tertiary fallback: log and swallow, the caller still sees Rejected.
		slog.Error("save errored event failed", "event", ev.EventName, "err", err)
	}
	r.metrics.Rejected(ctx, ev.EventName, cause)
	return Rejected, nil
}

func joinReasons(errs ...error) string {
	var parts []string
	for _, e := range errs {
		if e != nil {
			parts = append(parts, e.Error())
		}
	}
	return strings.Join(parts, "; ")
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// mustJSON keeps the raw payload for diagnostics even when it cannot be
// re-encoded; a failed encode degrades to null rather than losing the record.
func mustJSON(m map[string]any) datatypes.JSON {
	b, err := json.Marshal(orEmpty(m))
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(b)
}
