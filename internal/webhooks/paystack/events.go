package paystackwebhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wavelength-fm/station-backend/pkg/enums"
)

// ErrMalformedEvent marks a verified delivery whose body cannot be routed.
var ErrMalformedEvent = errors.New("malformed webhook event")

// Event is one decoded provider callback. Each variant has been validated
// before it is returned.
type Event interface {
	Type() string
	Reference() string
}

// Customer is the payer block the provider attaches to charge events.
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// ChargeSuccess confirms a pledge was paid. Amount is in minor units.
type ChargeSuccess struct {
	Ref      string
	Amount   int64
	Currency string
	Channel  string
	Customer Customer
	Metadata map[string]any
	// Data is the full provider data object, merged into donation metadata.
	Data map[string]any
}

func (e ChargeSuccess) Type() string      { return string(enums.WebhookEventChargeSuccess) }
func (e ChargeSuccess) Reference() string { return e.Ref }

// ChargeFailed reports a declined or abandoned charge.
type ChargeFailed struct {
	Ref             string
	GatewayResponse string
}

func (e ChargeFailed) Type() string      { return string(enums.WebhookEventChargeFailed) }
func (e ChargeFailed) Reference() string { return e.Ref }

// Unknown is any event type this service does not act on.
type Unknown struct {
	EventType string
}

func (e Unknown) Type() string      { return e.EventType }
func (e Unknown) Reference() string { return "" }

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chargeData struct {
	Reference       string          `json:"reference"`
	Amount          *int64          `json:"amount"`
	Currency        string          `json:"currency"`
	Channel         string          `json:"channel"`
	GatewayResponse string          `json:"gateway_response"`
	Customer        Customer        `json:"customer"`
	Metadata        json.RawMessage `json:"metadata"`
}

// ParseEvent decodes the {event, data} envelope into a typed variant.
func ParseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	eventType := strings.TrimSpace(env.Event)
	if eventType == "" {
		return nil, fmt.Errorf("%w: event type missing", ErrMalformedEvent)
	}

	switch enums.WebhookEventType(eventType) {
	case enums.WebhookEventChargeSuccess:
		data, full, err := decodeCharge(env.Data)
		if err != nil {
			return nil, err
		}
		event := ChargeSuccess{
			Ref:      data.Reference,
			Currency: strings.ToUpper(strings.TrimSpace(data.Currency)),
			Channel:  data.Channel,
			Customer: data.Customer,
			Metadata: metadataObject(data.Metadata),
			Data:     full,
		}
		if data.Amount != nil {
			event.Amount = *data.Amount
		}
		return event, nil
	case enums.WebhookEventChargeFailed:
		data, _, err := decodeCharge(env.Data)
		if err != nil {
			return nil, err
		}
		return ChargeFailed{Ref: data.Reference, GatewayResponse: data.GatewayResponse}, nil
	default:
		return Unknown{EventType: eventType}, nil
	}
}

func decodeCharge(raw json.RawMessage) (*chargeData, map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil, fmt.Errorf("%w: data missing", ErrMalformedEvent)
	}
	var data chargeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	data.Reference = strings.TrimSpace(data.Reference)
	if data.Reference == "" {
		return nil, nil, fmt.Errorf("%w: data.reference missing", ErrMalformedEvent)
	}
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return &data, full, nil
}

// metadataObject returns the provider metadata when it is a JSON object. The
// provider sends an empty string when a charge carries none.
func metadataObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
