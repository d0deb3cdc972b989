package draft

import (
	"math"
	"strings"
	"time"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

type fieldErrors map[string]string

func (f fieldErrors) required(key, value string) {
	if strings.TrimSpace(value) == "" {
		f[key] = "is required"
	}
}

func (f fieldErrors) err(message string) error {
	if len(f) == 0 {
		return nil
	}
	return domain.ValidationFailed(message, f)
}

// ValidateBasicInfo checks title, description and category
func (d *Draft) ValidateBasicInfo() error {
	f := fieldErrors{}
	d.checkBasicInfo(f)
	return f.err("basic information is incomplete")
}

func (d *Draft) checkBasicInfo(f fieldErrors) {
	f.required("title", d.Title)
	f.required("description", d.Description)
	switch {
	case d.Category == "":
		f["category"] = "is required"
	case !domain.IsValidCategory(d.Category):
		f["category"] = "must be one of " + strings.Join(domain.Categories, ", ")
	}
}

// ValidateSchedule checks the date, time and location
func (d *Draft) ValidateSchedule() error {
	f := fieldErrors{}
	d.checkSchedule(f)
	return f.err("location and date are incomplete")
}

func (d *Draft) checkSchedule(f fieldErrors) {
	if d.Date == "" {
		f["date"] = "is required"
	} else if _, err := time.Parse(DateLayout, d.Date); err != nil {
		f["date"] = "must be YYYY-MM-DD"
	}
	if d.Time == "" {
		f["time"] = "is required"
	} else if _, err := time.Parse(TimeLayout, d.Time); err != nil {
		f["time"] = "must be HH:MM"
	}
	f.required("location.address", d.Location.Address)
	f.required("location.city", d.Location.City)
	f.required("location.state", d.Location.State)
	f.required("location.country", d.Location.Country)
}

// ValidateTickets checks every ticket tier
func (d *Draft) ValidateTickets() error {
	f := fieldErrors{}
	d.checkTickets(f)
	return f.err("ticket tiers are invalid")
}

func (d *Draft) checkTickets(f fieldErrors) {
	if len(d.TicketTiers) == 0 {
		f["ticketTiers"] = "at least one tier is required"
		return
	}
	for i, t := range d.TicketTiers {
		f.required(tierKey(i, "name"), t.Name)
		switch {
		case math.IsNaN(t.Price) || math.IsInf(t.Price, 0):
			f[tierKey(i, "price")] = "must be a number"
		case t.Price < 0:
			f[tierKey(i, "price")] = "must not be negative"
		}
		if t.Quantity < 1 {
			f[tierKey(i, "quantity")] = "must be at least 1"
		}
	}
}

// Validate checks the whole draft
func (d *Draft) Validate() error {
	f := fieldErrors{}
	d.checkBasicInfo(f)
	d.checkSchedule(f)
	d.checkTickets(f)
	return f.err("event draft is invalid")
}
