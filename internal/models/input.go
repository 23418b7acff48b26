package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidInput wraps every decoding and validation failure of an event file.
var ErrInvalidInput = errors.New("invalid event input")

// Format is the serialization format of an event file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var validate = validator.New()

// EventInput is the wire shape of an event file.
type EventInput struct {
	StartDate   *time.Time        `json:"startDate" yaml:"startDate" validate:"required"`
	Title       string            `json:"title" yaml:"title"`
	Description *DescriptionInput `json:"description,omitempty" yaml:"description,omitempty"`
	Location    *LocationInput    `json:"location,omitempty" yaml:"location,omitempty"`
	Organizer   *OrganizerInput   `json:"organizer,omitempty" yaml:"organizer,omitempty"`
	URL         string            `json:"url,omitempty" yaml:"url,omitempty"`
	IsAllDay    bool              `json:"isAllDay" yaml:"isAllDay"`
	EndDate     *time.Time        `json:"endDate,omitempty" yaml:"endDate,omitempty" validate:"required_if=IsAllDay false"`
}

// DescriptionInput is the wire shape of Description.
type DescriptionInput struct {
	Plain string `json:"plain" yaml:"plain" validate:"required_with=HTML"`
	HTML  string `json:"html,omitempty" yaml:"html,omitempty"`
}

// LocationInput is the wire shape of Location.
type LocationInput struct {
	Title   string    `json:"title" yaml:"title"`
	Address string    `json:"address,omitempty" yaml:"address,omitempty"`
	Geo     *GeoInput `json:"geo,omitempty" yaml:"geo,omitempty"`
}

// GeoInput holds coordinates in decimal degrees.
type GeoInput struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// OrganizerInput is the wire shape of Organizer.
type OrganizerInput struct {
	Name   string `json:"name" yaml:"name"`
	Email  string `json:"email,omitempty" yaml:"email,omitempty"`
	MailTo string `json:"mailTo,omitempty" yaml:"mailTo,omitempty"`
	SentBy string `json:"sentBy,omitempty" yaml:"sentBy,omitempty"`
}

// FormatFromPath guesses the input format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeEvent reads one event in the given format and converts it to an Event.
func DecodeEvent(r io.Reader, format Format) (Event, error) {
	var in EventInput
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&in); err != nil {
			return Event{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return Event{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	default:
		return Event{}, fmt.Errorf("%w: unknown format %q", ErrInvalidInput, format)
	}
	return in.ToEvent()
}

// ToEvent validates the input and converts it into the Event model.
func (in EventInput) ToEvent() (Event, error) {
	if err := validate.Struct(in); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	event := Event{
		Start: *in.StartDate,
		Title: in.Title,
		URL:   in.URL,
	}

	if in.IsAllDay {
		event.Schedule = AllDay{End: in.EndDate}
	} else {
		event.Schedule = Timed{End: *in.EndDate}
	}

	if in.Description != nil {
		event.Description = &Description{
			Plain: in.Description.Plain,
			HTML:  in.Description.HTML,
		}
	}

	if in.Location != nil {
		event.Location = &Location{
			Title:   in.Location.Title,
			Address: in.Location.Address,
		}
		if in.Location.Geo != nil {
			event.Location.Geo = &Geo{Lat: in.Location.Geo.Lat, Lon: in.Location.Geo.Lon}
		}
	}

	if in.Organizer != nil {
		event.Organizer = &Organizer{
			Name:   in.Organizer.Name,
			Email:  in.Organizer.Email,
			MailTo: in.Organizer.MailTo,
			SentBy: in.Organizer.SentBy,
		}
	}

	if err := event.Validate(); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return event, nil
}
