// Package registry routes outbox rows to Pub/Sub topics and decodes their
// payloads into typed events.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/wavelength-fm/station-backend/pkg/config"
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	"github.com/wavelength-fm/station-backend/pkg/outbox"
	"github.com/wavelength-fm/station-backend/pkg/outbox/payloads"
)

// Route binds an event type to its aggregate, topic and payload decoder.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func([]byte) (any, error)
}

type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// keyed payloads name the aggregate they describe; Resolve checks it against
// the row so a mis-written event cannot reach the wrong ordering key.
type keyed interface {
	AggregateKey() uuid.UUID
}

type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as one that retrying cannot fix. The publisher moves
// such rows straight to the dead-letter table.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}

func jsonPayload[T any]() func([]byte) (any, error) {
	return func(raw []byte) (any, error) {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// NewEventRegistry wires every donation event to the configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DonationsTopic)
	if topic == "" {
		return nil, errors.New("donations topic is required")
	}
	r := &EventRegistry{routes: map[enums.OutboxEventType]Route{}}
	for _, t := range []enums.OutboxEventType{enums.EventDonationSucceeded, enums.EventDonationFailed} {
		r.routes[t] = Route{
			EventType:     t,
			AggregateType: enums.AggregateDonation,
			Topic:         topic,
			decode:        jsonPayload[payloads.DonationStatusChangedEvent](),
		}
	}
	return r, nil
}

// Topics lists every distinct topic, sorted.
func (r *EventRegistry) Topics() []string {
	set := map[string]struct{}{}
	for _, route := range r.routes {
		set[route.Topic] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Resolve validates the row against its route and decodes the payload. Every
// error it returns is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("no route for event type %q", event.EventType))
	case route.AggregateType != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s: aggregate %q, want %q", event.EventType, event.AggregateType, route.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(fmt.Errorf("%s row %s has no aggregate id", event.EventType, event.ID))
	}

	env, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s row %s: %w", event.EventType, event.ID, err))
	}
	payload, err := route.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if k, ok := payload.(keyed); ok && k.AggregateKey() != event.AggregateID {
		return nil, Permanent(fmt.Errorf("%s payload describes %s, row aggregate is %s", event.EventType, k.AggregateKey(), event.AggregateID))
	}
	return &ResolvedEvent{Route: route, Envelope: env, Payload: payload}, nil
}
