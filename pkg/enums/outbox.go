package enums

// OutboxAggregateType names the entity an outbox row describes.
type OutboxAggregateType string

const AggregateDonation OutboxAggregateType = "donation"

var aggregateTypes = []OutboxAggregateType{AggregateDonation}

func (a OutboxAggregateType) IsValid() bool { return member(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, value, aggregateTypes)
}

// OutboxEventType is the domain event carried by an outbox row.
type OutboxEventType string

const (
	EventDonationSucceeded OutboxEventType = "donation_succeeded"
	EventDonationFailed    OutboxEventType = "donation_failed"
)

var outboxEventTypes = []OutboxEventType{EventDonationSucceeded, EventDonationFailed}

func (e OutboxEventType) IsValid() bool { return member(e, outboxEventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, value, outboxEventTypes)
}

// EventForStatus maps a terminal donation status to the event announcing it.
func EventForStatus(status DonationStatus) (OutboxEventType, bool) {
	switch status {
	case DonationStatusSuccess:
		return EventDonationSucceeded, true
	case DonationStatusFailed:
		return EventDonationFailed, true
	default:
		return "", false
	}
}

// OutboxDLQErrorReason says why a row left the outbox for the dead-letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
