// Package ical renders events as iCalendar VEVENT components (RFC 5545).
//
// Generate emits BEGIN:VEVENT and the event properties but never the closing
// END:VEVENT; callers embed the result in a document, see WrapEvents.
package ical

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"icsgen/internal/models"
)

// IDGenerator supplies the UID of each generated event.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NewID() string { return f() }

// StaticID always returns the same identifier.
type StaticID string

func (s StaticID) NewID() string { return string(s) }

// Clock supplies the DTSTAMP of each generated event.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// NewUID creates a new unique identifier for an event.
func NewUID() string {
	return uuid.New().String()
}

// Generator converts events to VEVENT text. The zero value is not usable,
// use NewGenerator.
type Generator struct {
	ids   IDGenerator
	clock Clock
}

// Option configures a Generator.
type Option func(*Generator)

// WithIDGenerator replaces the default random UID source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(g *Generator) { g.ids = ids }
}

// WithClock replaces the wall clock used for DTSTAMP.
func WithClock(clock Clock) Option {
	return func(g *Generator) { g.clock = clock }
}

// NewGenerator creates a Generator using random UUIDs and the wall clock
// unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		ids:   IDGeneratorFunc(NewUID),
		clock: ClockFunc(time.Now),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate renders event with a random UID and the current time.
func Generate(event models.Event) (string, error) {
	return defaultGenerator.Generate(event)
}

// Generate renders event as CRLF-terminated VEVENT property lines.
// An event that fails validation produces no output.
func (g *Generator) Generate(event models.Event) (string, error) {
	if err := event.Validate(); err != nil {
		return "", fmt.Errorf("cannot generate event %q: %w", event.Title, err)
	}

	id := g.ids.NewID()
	now := g.clock.Now()

	var b lineBuffer
	b.add("BEGIN:VEVENT")
	b.add("UID:" + id)
	b.add("SEQUENCE:0")
	b.add("DTSTAMP:" + FormatDateTime(now))
	b.add("SUMMARY:" + Escape(event.Title))

	// The plain description is written as given; only the html variant is escaped.
	if d := event.Description; d != nil {
		b.add("DESCRIPTION:" + d.Plain)
		if d.HTML != "" {
			b.add("X-ALT-DESC;FMTTYPE=text/html:" + Escape(d.HTML))
		}
	}

	switch s := event.Schedule.(type) {
	case models.AllDay:
		b.add("DTSTART;VALUE=DATE:" + FormatDate(event.Start))
		if s.End != nil {
			b.add("DTEND;VALUE=DATE:" + FormatDate(*s.End))
		}
	case models.Timed:
		b.add("DTSTART:" + FormatDateTime(event.Start))
		b.add("DTEND:" + FormatDateTime(s.End))
	}

	if l := event.Location; l != nil {
		b.add("LOCATION:" + Escape(l.Title))
		if l.Address != "" {
			b.add(Escape(l.Address))
		}
		if l.Geo != nil {
			b.add("GEO:" + Escape(formatCoordinate(l.Geo.Lat)) + ";" + Escape(formatCoordinate(l.Geo.Lon)))
		}
	}

	if event.Organizer != nil {
		b.add(organizerLine(event.Organizer))
	}

	if event.URL != "" {
		b.add("URL;VALUE=URI:" + Escape(event.URL))
	}

	return b.String(), nil
}

// formatCoordinate renders v in shortest form, switching to exponent
// notation below 1e-6 and from 1e21 on, e.g. 1e-7 and 1e+21.
func formatCoordinate(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		return exponentPadding.Replace(s)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var exponentPadding = strings.NewReplacer("e-0", "e-", "e+0", "e+")

type lineBuffer struct {
	sb strings.Builder
}

func (b *lineBuffer) add(line string) {
	b.sb.WriteString(line)
	b.sb.WriteString("\r\n")
}

func (b *lineBuffer) String() string {
	return b.sb.String()
}
