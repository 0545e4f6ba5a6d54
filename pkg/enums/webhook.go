package enums

// WebhookEventType is the provider's event discriminator.
type WebhookEventType string

const (
	WebhookEventChargeSuccess WebhookEventType = "charge.success"
	WebhookEventChargeFailed  WebhookEventType = "charge.failed"
)

func (t WebhookEventType) String() string {
	return string(t)
}

// WebhookProvider names the sender of a delivery.
type WebhookProvider string

const WebhookProviderPaystack WebhookProvider = "paystack"

// WebhookOutcome records what happened to a verified delivery.
type WebhookOutcome string

const (
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeNotFound  WebhookOutcome = "not_found"
	WebhookOutcomeAnomaly   WebhookOutcome = "anomaly"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
)

func (o WebhookOutcome) String() string {
	return string(o)
}

// Acknowledged reports whether the provider receives a 200 for this outcome.
func (o WebhookOutcome) Acknowledged() bool {
	return o != WebhookOutcomeFailed
}
