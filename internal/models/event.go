package models

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors returned by Event.Validate.
var (
	// ErrMissingSchedule means the event is neither all-day nor timed with an end.
	ErrMissingSchedule = errors.New("event has no schedule")
	// ErrMissingStart means the start date is zero.
	ErrMissingStart = errors.New("event has no start date")
	// ErrHTMLWithoutPlain means a description has an html variant but no plain text.
	ErrHTMLWithoutPlain = errors.New("html description requires a plain description")
)

// Event represents a single calendar event to be rendered as a VEVENT.
// Optional text fields use the empty string to mean "absent".
type Event struct {
	Start       time.Time
	Title       string
	Description *Description
	Location    *Location
	Organizer   *Organizer
	URL         string
	Schedule    Schedule
}

// Description carries the plain text body and an optional rich variant.
type Description struct {
	Plain string
	HTML  string
}

// Location describes where the event takes place.
type Location struct {
	Title   string
	Address string
	Geo     *Geo
}

// Geo is a latitude/longitude pair in decimal degrees.
type Geo struct {
	Lat float64
	Lon float64
}

// Organizer is the single organizer of an event.
//
// When both Email and MailTo are set, Email is advertised as a parameter and
// MailTo becomes the calendar address.
type Organizer struct {
	Name   string
	Email  string
	MailTo string
	SentBy string
}

// Schedule is either AllDay or Timed.
type Schedule interface {
	isSchedule()
}

// AllDay is a date-only schedule. A nil End means a single-day event.
type AllDay struct {
	End *time.Time
}

// Timed is a schedule with a time of day. A timed event always has an end.
type Timed struct {
	End time.Time
}

func (AllDay) isSchedule() {}
func (Timed) isSchedule()  {}

// IsAllDay reports whether the event has date-only precision.
func (e Event) IsAllDay() bool {
	_, ok := e.Schedule.(AllDay)
	return ok
}

// Validate checks the invariants that the type system cannot express.
func (e Event) Validate() error {
	if e.Start.IsZero() {
		return ErrMissingStart
	}
	switch s := e.Schedule.(type) {
	case AllDay:
	case Timed:
		if s.End.IsZero() {
			return fmt.Errorf("%w: timed event needs an end date", ErrMissingSchedule)
		}
	default:
		return ErrMissingSchedule
	}
	if e.Description != nil && e.Description.HTML != "" && e.Description.Plain == "" {
		return ErrHTMLWithoutPlain
	}
	return nil
}

// NewTimedEvent builds an event with a start and a required end.
func NewTimedEvent(title string, start, end time.Time) Event {
	return Event{
		Title:    title,
		Start:    start,
		Schedule: Timed{End: end},
	}
}

// NewAllDayEvent builds a single-day event. Use WithEnd for a date range.
func NewAllDayEvent(title string, start time.Time) Event {
	return Event{
		Title:    title,
		Start:    start,
		Schedule: AllDay{},
	}
}

// WithEnd returns a copy of an all-day event spanning up to end.
// It is a no-op for timed events, whose end is already set.
func (e Event) WithEnd(end time.Time) Event {
	if _, ok := e.Schedule.(AllDay); ok {
		e.Schedule = AllDay{End: &end}
	}
	return e
}

// FetchedEvent is an event pulled from an external calendar provider.
type FetchedEvent struct {
	ID     string // Identifier in the source calendar
	Source string // The source of the event (e.g., "google-primary")
	Event  Event
}
