package domain

import "time"

// Category constants
const (
	CategoryMusic      = "music"
	CategorySports     = "sports"
	CategoryArts       = "arts"
	CategoryTechnology = "technology"
	CategoryFood       = "food"
	CategoryBusiness   = "business"
	CategoryOther      = "other"
)

// Categories lists the accepted event categories in display order
var Categories = []string{
	CategoryMusic,
	CategorySports,
	CategoryArts,
	CategoryTechnology,
	CategoryFood,
	CategoryBusiness,
	CategoryOther,
}

// IsValidCategory returns true if c is one of Categories
func IsValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Location is the venue address of an event
type Location struct {
	Address string `json:"address" yaml:"address"`
	City    string `json:"city" yaml:"city"`
	State   string `json:"state" yaml:"state"`
	Country string `json:"country" yaml:"country"`
}

// TicketTier is a priced ticket category with a fixed inventory
type TicketTier struct {
	Name        string  `json:"name" yaml:"name"`
	Price       float64 `json:"price" yaml:"price"`
	Quantity    int     `json:"quantity" yaml:"quantity"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// EventPayload is the body of the event creation request
type EventPayload struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Date        time.Time    `json:"date"`
	Location    Location     `json:"location"`
	TicketTiers []TicketTier `json:"ticketTiers"`
	Images      []string     `json:"images"`
}

// Event is an event as returned by the service
type Event struct {
	ID          string       `json:"id"`
	LegacyID    string       `json:"_id,omitempty"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Date        time.Time    `json:"date"`
	Location    Location     `json:"location"`
	TicketTiers []TicketTier `json:"ticketTiers"`
	Images      []string     `json:"images"`
	Organizer   string       `json:"organizer,omitempty"`
	Status      string       `json:"status,omitempty"`
}

// Event statuses
const (
	EventStatusPending  = "pending"
	EventStatusApproved = "approved"
)

// EventPage is one page of a listing
type EventPage struct {
	Events []Event
	Total  int64
}

// ResourceID returns the server-assigned identifier, accepting the legacy _id field
func (e *Event) ResourceID() string {
	if e.ID != "" {
		return e.ID
	}
	return e.LegacyID
}

// EventListFilter represents filters for listing events
type EventListFilter struct {
	Category string
	Search   string
	Date     string // YYYY-MM-DD
	Limit    int
	Offset   int
}

// SetDefaults sets default values for pagination
func (f *EventListFilter) SetDefaults() {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// MediaItem is raw media content selected locally
type MediaItem struct {
	Name    string
	Content []byte
}
