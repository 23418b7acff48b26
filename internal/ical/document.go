package ical

import (
	"errors"
	"fmt"
	"strings"

	goical "github.com/emersion/go-ical"
)

// DefaultProductID is the PRODID written when the caller gives none.
const DefaultProductID = "-//icsgen//icsgen//EN"

// ErrNoEvents is returned by Check for a calendar without VEVENT components.
var ErrNoEvents = errors.New("calendar has no events")

// WrapEvents closes each generated VEVENT body and embeds them in a
// VCALENDAR document.
func WrapEvents(prodID string, bodies ...string) string {
	if prodID == "" {
		prodID = DefaultProductID
	}

	var b lineBuffer
	b.add("BEGIN:VCALENDAR")
	b.add("VERSION:2.0")
	b.add("PRODID:" + prodID)
	for _, body := range bodies {
		b.sb.WriteString(body)
		b.add("END:VEVENT")
	}
	b.add("END:VCALENDAR")
	return b.String()
}

// Check decodes doc with a strict parser and returns its events.
// Bare address lines and organizers without an address are rejected.
func Check(doc string) (events []goical.Event, err error) {
	// The decoder panics on a property line that ends before its value.
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("failed to decode calendar: malformed content line: %v", r)
		}
	}()

	cal, err := goical.NewDecoder(strings.NewReader(doc)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}
	events = cal.Events()
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	return events, nil
}
