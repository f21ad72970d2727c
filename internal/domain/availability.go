package domain

import "strings"

// Availability describes whether a consultant can be staffed on a new engagement.
// The upstream profile importer historically wrote both enum names and free-form
// strings into this column, so every value read from storage goes through
// ParseAvailability exactly once, at the model boundary.
type Availability string

const (
	AvailabilityAvailable          Availability = "available"
	AvailabilityPartiallyAvailable Availability = "partially_available"
	AvailabilityUnavailable        Availability = "unavailable"
	AvailabilityUnknown            Availability = "unknown"
)

// ParseAvailability normalizes a raw availability value to one of the defined
// states. Unrecognized values map to AvailabilityUnknown rather than failing;
// only AvailabilityUnavailable excludes a consultant from matching.
func ParseAvailability(raw string) Availability {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "available":
		return AvailabilityAvailable
	case "partially_available", "partially available", "partial":
		return AvailabilityPartiallyAvailable
	case "unavailable":
		return AvailabilityUnavailable
	default:
		return AvailabilityUnknown
	}
}

func (a Availability) String() string {
	return string(a)
}
