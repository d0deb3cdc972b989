package draft

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func launchParty() *Draft {
	d := New()
	d.Title = "Launch Party"
	d.Description = "Product launch"
	d.Category = domain.CategoryTechnology
	d.Date = "2030-05-01"
	d.Time = "19:30"
	d.Location = domain.Location{Address: "1 Main St", City: "Springfield", State: "IL", Country: "US"}
	d.TicketTiers = []domain.TicketTier{{Name: "GA", Price: 20, Quantity: 100}}
	return d
}

func TestNew(t *testing.T) {
	d := New()
	assert.Len(t, d.TicketTiers, 1)
	assert.Empty(t, d.Media)
}

func TestSetField(t *testing.T) {
	d := launchParty()

	require.NoError(t, d.SetField("location.city", "Shelbyville"))
	assert.Equal(t, "Shelbyville", d.Location.City)
	assert.Equal(t, "1 Main St", d.Location.Address, "sibling fields untouched")
	assert.Equal(t, "Launch Party", d.Title)

	require.NoError(t, d.SetField("title", "Afterparty"))
	assert.Equal(t, "Afterparty", d.Title)

	err := d.SetField("location.zip", "12345")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, domain.FieldErrors(err), "location.zip")
}

func TestRemoveTier_KeepsAtLeastOne(t *testing.T) {
	d := New()

	err := d.RemoveTier(0)
	assert.ErrorIs(t, err, ErrLastTier)
	assert.Len(t, d.TicketTiers, 1)

	d.AddTier()
	d.AddTier()
	require.NoError(t, d.UpdateTier(1, "name", "VIP"))
	require.NoError(t, d.RemoveTier(0))
	require.Len(t, d.TicketTiers, 2)
	assert.Equal(t, "VIP", d.TicketTiers[0].Name)

	require.NoError(t, d.RemoveTier(1))
	assert.ErrorIs(t, d.RemoveTier(0), ErrLastTier)
	assert.Len(t, d.TicketTiers, 1)

	assert.ErrorIs(t, d.RemoveTier(5), ErrIndexOutOfRange)
	assert.ErrorIs(t, d.RemoveTier(-1), ErrIndexOutOfRange)
}

func TestUpdateTier(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr bool
		check   func(t *testing.T, tier domain.TicketTier)
	}{
		{"name", "name", "Early bird", false, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, "Early bird", tier.Name)
		}},
		{"price", "price", " 12.50 ", false, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, 12.5, tier.Price)
		}},
		{"quantity", "quantity", "40", false, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, 40, tier.Quantity)
		}},
		{"description", "description", "front rows", false, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, "front rows", tier.Description)
		}},
		{"bad price", "price", "free", true, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, 20.0, tier.Price)
		}},
		{"NaN price", "price", "NaN", true, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, 20.0, tier.Price)
		}},
		{"infinite price", "price", "+Inf", true, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, 20.0, tier.Price)
		}},
		{"fractional quantity", "quantity", "1.5", true, func(t *testing.T, tier domain.TicketTier) {
			assert.Equal(t, 100, tier.Quantity)
		}},
		{"unknown field", "color", "red", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := launchParty()
			err := d.UpdateTier(0, tt.field, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				require.NoError(t, err)
			}
			if tt.check != nil {
				tt.check(t, d.TicketTiers[0])
			}
		})
	}

	d := launchParty()
	assert.ErrorIs(t, d.UpdateTier(3, "name", "x"), ErrIndexOutOfRange)
}

func TestAddMedia(t *testing.T) {
	d := New()

	handles := d.AddMedia(
		domain.MediaItem{Name: "a.png", Content: pngPixel},
		domain.MediaItem{Name: "notes.txt", Content: []byte("hello")},
	)
	require.Len(t, handles, 2)
	assert.NotEqual(t, handles[0], handles[1])
	require.Len(t, d.Media, 2)

	assert.Equal(t, handles[0], d.Media[0].Handle)
	assert.Equal(t, "image/png", d.Media[0].MIMEType)
	assert.True(t, strings.HasPrefix(d.Media[0].Preview, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(d.Media[1].Preview, "data:text/plain"))

	more := d.AddMedia(domain.MediaItem{Name: "b.png", Content: pngPixel})
	require.Len(t, d.Media, 3)
	assert.Equal(t, more[0], d.Media[2].Handle, "appends")

	require.NoError(t, d.RemoveMedia(0))
	assert.Equal(t, handles[1], d.Media[0].Handle)
	assert.ErrorIs(t, d.RemoveMedia(9), ErrIndexOutOfRange)
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(d *Draft)
		validate  func(d *Draft) error
		wantField string
	}{
		{"valid basic info", nil, (*Draft).ValidateBasicInfo, ""},
		{"missing title", func(d *Draft) { d.Title = "  " }, (*Draft).ValidateBasicInfo, "title"},
		{"unknown category", func(d *Draft) { d.Category = "circus" }, (*Draft).ValidateBasicInfo, "category"},
		{"valid schedule", nil, (*Draft).ValidateSchedule, ""},
		{"bad date", func(d *Draft) { d.Date = "05/01/2030" }, (*Draft).ValidateSchedule, "date"},
		{"bad time", func(d *Draft) { d.Time = "7pm" }, (*Draft).ValidateSchedule, "time"},
		{"missing country", func(d *Draft) { d.Location.Country = "" }, (*Draft).ValidateSchedule, "location.country"},
		{"valid tickets", nil, (*Draft).ValidateTickets, ""},
		{"negative price", func(d *Draft) { d.TicketTiers[0].Price = -1 }, (*Draft).ValidateTickets, "ticketTiers[0].price"},
		{"NaN price", func(d *Draft) { d.TicketTiers[0].Price = math.NaN() }, (*Draft).ValidateTickets, "ticketTiers[0].price"},
		{"infinite price", func(d *Draft) { d.TicketTiers[0].Price = math.Inf(1) }, (*Draft).ValidateTickets, "ticketTiers[0].price"},
		{"zero quantity", func(d *Draft) { d.TicketTiers[0].Quantity = 0 }, (*Draft).ValidateTickets, "ticketTiers[0].quantity"},
		{"free tier is fine", func(d *Draft) { d.TicketTiers[0].Price = 0 }, (*Draft).ValidateTickets, ""},
		{"second tier unnamed", func(d *Draft) { d.AddTier() }, (*Draft).ValidateTickets, "ticketTiers[1].name"},
		{"whole draft", func(d *Draft) { d.Location.City = "" }, (*Draft).Validate, "location.city"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := launchParty()
			if tt.mutate != nil {
				tt.mutate(d)
			}
			err := tt.validate(d)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, domain.FieldErrors(err), tt.wantField)
		})
	}
}

func TestValidate_CollectsAllSteps(t *testing.T) {
	err := New().Validate()
	require.Error(t, err)

	fields := domain.FieldErrors(err)
	for _, key := range []string{"title", "category", "date", "location.address", "ticketTiers[0].name", "ticketTiers[0].quantity"} {
		assert.Contains(t, fields, key)
	}
}

func TestTimestamp(t *testing.T) {
	d := launchParty()

	ts, err := d.Timestamp(nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 19, 30, 0, 0, time.UTC), ts)

	tokyo := time.FixedZone("JST", 9*60*60)
	ts, err = d.Timestamp(tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 5, 1, 10, 30, 0, 0, time.UTC), ts.UTC())

	d.Time = ""
	_, err = d.Timestamp(nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPayload(t *testing.T) {
	d := launchParty()
	d.AddMedia(domain.MediaItem{Name: "a.png", Content: pngPixel}, domain.MediaItem{Name: "b.png", Content: pngPixel})

	_, err := d.Payload([]string{"only-one"}, time.UTC)
	assert.Error(t, err)

	p, err := d.Payload([]string{"https://cdn/a.png", "https://cdn/b.png"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Launch Party", p.Title)
	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.png"}, p.Images)
	assert.Equal(t, time.Date(2030, 5, 1, 19, 30, 0, 0, time.UTC), p.Date)
	require.Len(t, p.TicketTiers, 1)

	// The payload does not alias the draft
	p.TicketTiers[0].Name = "changed"
	assert.Equal(t, "GA", d.TicketTiers[0].Name)

	empty := launchParty()
	p, err = empty.Payload(nil, time.UTC)
	require.NoError(t, err)
	assert.NotNil(t, p.Images)
	assert.Empty(t, p.Images)
}

func TestClone(t *testing.T) {
	d := launchParty()
	d.AddMedia(domain.MediaItem{Name: "a.png", Content: pngPixel})

	c := d.Clone()
	c.TicketTiers[0].Name = "VIP"
	c.Media[0].Content[0] = 0
	c.Location.City = "Elsewhere"

	assert.Equal(t, "GA", d.TicketTiers[0].Name)
	assert.Equal(t, byte(0x89), d.Media[0].Content[0])
	assert.Equal(t, "Springfield", d.Location.City)
}

func TestLoad(t *testing.T) {
	src := `
title: Launch Party
description: Product launch
category: technology
date: "2030-05-01"
time: "19:30"
location:
  address: 1 Main St
  city: Springfield
  state: IL
  country: US
ticketTiers:
  - name: GA
    price: 20
    quantity: 100
  - name: VIP
    price: 75.5
    quantity: 10
    description: front rows
`
	d, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, d.Validate())
	assert.Equal(t, "Springfield", d.Location.City)
	require.Len(t, d.TicketTiers, 2)
	assert.Equal(t, 75.5, d.TicketTiers[1].Price)
	assert.Equal(t, "front rows", d.TicketTiers[1].Description)
}

func TestLoad_NonFinitePriceFailsValidation(t *testing.T) {
	src := `
title: Launch Party
ticketTiers:
  - name: GA
    price: .nan
    quantity: 100
`
	d, err := Load(strings.NewReader(src))
	require.NoError(t, err)

	err = d.ValidateTickets()
	require.Error(t, err)
	assert.Equal(t, "must be a number", domain.FieldErrors(err)["ticketTiers[0].price"])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("title: x\nvenue: somewhere\n"))
	assert.Error(t, err, "unknown keys are rejected")

	d, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Len(t, d.TicketTiers, 1)
}
