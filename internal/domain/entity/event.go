// Package entity defines the core domain entities and validation logic for the
// application. It contains the fundamental business objects such as Event and
// DiscoveryRun, along with their validation rules and domain-specific errors.
package entity

import "time"

// Discovery sources record which pipeline path produced an event.
const (
	// EventSourceSearch marks events found through the search API.
	EventSourceSearch = "cse"

	// EventSourceFeed marks events found through RSS/Atom feeds.
	EventSourceFeed = "feed"

	// EventSourceUnknown is the fallback for events without a recorded origin.
	EventSourceUnknown = "unknown"
)

// Event represents a developer event discovered on the web. It carries the
// page metadata extracted by the crawler and, when enhancement succeeded,
// the structured fields produced by the enhancement provider.
type Event struct {
	Title        string
	URL          string
	Description  string
	StartsAt     *time.Time
	EndsAt       *time.Time
	Location     string
	Source       string
	EnhancedBy   string
	DiscoveredAt time.Time
}

// Validate validates the Event entity fields.
// An empty Source is normalized to EventSourceUnknown for events produced
// by older pipeline stages that did not record an origin.
func (e *Event) Validate() error {
	if e.Source == "" {
		e.Source = EventSourceUnknown
	}

	if err := ValidateTitle(e.Title); err != nil {
		return err
	}
	if err := ValidateURL(e.URL); err != nil {
		return err
	}
	if err := ValidateDescription(e.Description); err != nil {
		return err
	}

	if e.StartsAt != nil && e.EndsAt != nil && e.EndsAt.Before(*e.StartsAt) {
		return &ValidationError{Field: "ends_at", Message: "event cannot end before it starts"}
	}

	return nil
}
