package workflow

import "github.com/prohmpiriya/event-studio/internal/draft"

// Step is one entry of the fixed authoring sequence
type Step struct {
	Name string
	// Validate gates leaving the step forward; nil means no gate
	Validate func(d *draft.Draft) error
}

// Step names
const (
	StepBasicInfo        = "basic-info"
	StepLocationAndDate  = "location-and-date"
	StepTicketsAndPrices = "tickets-and-pricing"
	StepMedia            = "media"
	StepReview           = "review"
)

var steps = []Step{
	{Name: StepBasicInfo, Validate: (*draft.Draft).ValidateBasicInfo},
	{Name: StepLocationAndDate, Validate: (*draft.Draft).ValidateSchedule},
	{Name: StepTicketsAndPrices, Validate: (*draft.Draft).ValidateTickets},
	{Name: StepMedia},
	{Name: StepReview},
}

// StepCount is the number of steps; the last one is review
var StepCount = len(steps)

// StepNames returns the step names in order
func StepNames() []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
