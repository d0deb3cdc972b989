// Package draft holds the in-progress event being authored and its
// field-level mutators and validators. Nothing here touches the network.
//
// A Draft is owned by one workflow and is not safe for concurrent use.
package draft

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

// Layouts of the date and time fields
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var (
	// ErrLastTier is returned when removing the only ticket tier
	ErrLastTier = errors.New("an event needs at least one ticket tier")
	// ErrIndexOutOfRange is returned for a tier or media index that does not exist
	ErrIndexOutOfRange = errors.New("index out of range")
)

// PendingMedia is media selected locally and not yet uploaded
type PendingMedia struct {
	// Handle identifies the item locally; it is never sent
	Handle   string
	Name     string
	MIMEType string
	// Preview is a data: URI renderable without the network
	Preview string
	Content []byte
}

// Item returns the content as a gateway upload item
func (m PendingMedia) Item() domain.MediaItem {
	return domain.MediaItem{Name: m.Name, Content: m.Content}
}

// Draft is the event being authored
type Draft struct {
	Title       string              `yaml:"title"`
	Description string              `yaml:"description"`
	Category    string              `yaml:"category"`
	Date        string              `yaml:"date"`
	Time        string              `yaml:"time"`
	Location    domain.Location     `yaml:"location"`
	TicketTiers []domain.TicketTier `yaml:"ticketTiers"`
	Media       []PendingMedia      `yaml:"-"`
}

// New returns an empty draft with one blank ticket tier
func New() *Draft {
	return &Draft{TicketTiers: []domain.TicketTier{{}}}
}

// Load decodes a YAML draft. Unknown keys are rejected and a draft
// without tiers gets one blank tier.
func Load(r io.Reader) (*Draft, error) {
	d := New()
	d.TicketTiers = nil

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding draft: %w", err)
	}
	if len(d.TicketTiers) == 0 {
		d.TicketTiers = []domain.TicketTier{{}}
	}
	return d, nil
}

// Clone returns a deep copy
func (d *Draft) Clone() *Draft {
	c := *d
	c.TicketTiers = append([]domain.TicketTier(nil), d.TicketTiers...)
	c.Media = make([]PendingMedia, len(d.Media))
	for i, m := range d.Media {
		m.Content = append([]byte(nil), m.Content...)
		c.Media[i] = m
	}
	return &c
}

// SetField assigns value to the field at path. Location sub-fields use
// dotted paths such as "location.city".
func (d *Draft) SetField(path, value string) error {
	switch path {
	case "title":
		d.Title = value
	case "description":
		d.Description = value
	case "category":
		d.Category = value
	case "date":
		d.Date = value
	case "time":
		d.Time = value
	case "location.address":
		d.Location.Address = value
	case "location.city":
		d.Location.City = value
	case "location.state":
		d.Location.State = value
	case "location.country":
		d.Location.Country = value
	default:
		return domain.ValidationFailed("unknown field", map[string]string{path: "is not a draft field"})
	}
	return nil
}

// AddTier appends a blank ticket tier and returns its index
func (d *Draft) AddTier() int {
	d.TicketTiers = append(d.TicketTiers, domain.TicketTier{})
	return len(d.TicketTiers) - 1
}

// RemoveTier deletes the tier at i. The last remaining tier cannot be removed.
func (d *Draft) RemoveTier(i int) error {
	if i < 0 || i >= len(d.TicketTiers) {
		return fmt.Errorf("tier %d: %w", i, ErrIndexOutOfRange)
	}
	if len(d.TicketTiers) == 1 {
		return ErrLastTier
	}
	d.TicketTiers = append(d.TicketTiers[:i], d.TicketTiers[i+1:]...)
	return nil
}

// UpdateTier sets one field of the tier at i from its form value.
// Fields are name, price, quantity and description. A value that does not
// parse leaves the tier unchanged.
func (d *Draft) UpdateTier(i int, field, value string) error {
	if i < 0 || i >= len(d.TicketTiers) {
		return fmt.Errorf("tier %d: %w", i, ErrIndexOutOfRange)
	}
	key := tierKey(i, field)
	tier := &d.TicketTiers[i]

	switch field {
	case "name":
		tier.Name = value
	case "description":
		tier.Description = value
	case "price":
		price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			return domain.ValidationFailed("invalid price", map[string]string{key: "must be a number"})
		}
		tier.Price = price
	case "quantity":
		qty, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return domain.ValidationFailed("invalid quantity", map[string]string{key: "must be a whole number"})
		}
		tier.Quantity = qty
	default:
		return domain.ValidationFailed("unknown field", map[string]string{key: "is not a tier field"})
	}
	return nil
}

// AddMedia appends items and returns their local handles
func (d *Draft) AddMedia(items ...domain.MediaItem) []string {
	handles := make([]string, 0, len(items))
	for _, item := range items {
		mt := mimetype.Detect(item.Content)
		m := PendingMedia{
			Handle:   uuid.New().String(),
			Name:     item.Name,
			MIMEType: mt.String(),
			Preview:  previewURI(mt.String(), item.Content),
			Content:  item.Content,
		}
		d.Media = append(d.Media, m)
		handles = append(handles, m.Handle)
	}
	return handles
}

// RemoveMedia deletes the media item at i
func (d *Draft) RemoveMedia(i int) error {
	if i < 0 || i >= len(d.Media) {
		return fmt.Errorf("media %d: %w", i, ErrIndexOutOfRange)
	}
	d.Media = append(d.Media[:i], d.Media[i+1:]...)
	return nil
}

func previewURI(mime string, content []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(content)
}

// Timestamp combines date and time in loc
func (d *Draft) Timestamp(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	ts, err := time.ParseInLocation(DateLayout+" "+TimeLayout, d.Date+" "+d.Time, loc)
	if err != nil {
		return time.Time{}, domain.ValidationFailed("invalid date or time", map[string]string{
			"date": "must be YYYY-MM-DD",
			"time": "must be HH:MM",
		})
	}
	return ts, nil
}

// Payload builds the creation request from the draft and the remote
// references of its media, in media order.
func (d *Draft) Payload(mediaRefs []string, loc *time.Location) (*domain.EventPayload, error) {
	if len(mediaRefs) != len(d.Media) {
		return nil, fmt.Errorf("have %d media references for %d media items", len(mediaRefs), len(d.Media))
	}
	ts, err := d.Timestamp(loc)
	if err != nil {
		return nil, err
	}

	images := make([]string, len(mediaRefs))
	copy(images, mediaRefs)

	return &domain.EventPayload{
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Date:        ts,
		Location:    d.Location,
		TicketTiers: append([]domain.TicketTier(nil), d.TicketTiers...),
		Images:      images,
	}, nil
}

func tierKey(i int, field string) string {
	return fmt.Sprintf("ticketTiers[%d].%s", i, field)
}
