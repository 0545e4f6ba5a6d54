package enums

import (
	"slices"
	"strings"
)

// DonationStatus tracks the payment lifecycle of a donation pledge.
type DonationStatus string

const (
	DonationStatusPending DonationStatus = "pending"
	DonationStatusSuccess DonationStatus = "success"
	DonationStatusFailed  DonationStatus = "failed"
)

var donationStatuses = []DonationStatus{DonationStatusPending, DonationStatusSuccess, DonationStatusFailed}

// donationTransitions lists, per source status, every status it may move to.
// Terminal statuses only accept themselves so provider redeliveries stay harmless.
var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPending: {DonationStatusPending, DonationStatusSuccess, DonationStatusFailed},
	DonationStatusSuccess: {DonationStatusSuccess},
	DonationStatusFailed:  {DonationStatusFailed},
}

func (s DonationStatus) String() string { return string(s) }

func (s DonationStatus) IsValid() bool { return member(s, donationStatuses) }

// IsTerminal reports whether no other status can follow s.
func (s DonationStatus) IsTerminal() bool {
	return s == DonationStatusSuccess || s == DonationStatusFailed
}

// CanTransitionTo reports whether a donation in status s may move to next.
func (s DonationStatus) CanTransitionTo(next DonationStatus) bool {
	return slices.Contains(donationTransitions[s], next)
}

// SourcesFor returns every status that may legally transition into target.
func SourcesFor(target DonationStatus) []DonationStatus {
	sources := make([]DonationStatus, 0, len(donationStatuses))
	for _, from := range donationStatuses {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// ParseDonationStatus is case-insensitive.
func ParseDonationStatus(value string) (DonationStatus, error) {
	return parse("donation status", value, strings.ToLower(strings.TrimSpace(value)), donationStatuses)
}
