package ical

import (
	"strings"

	"icsgen/internal/models"
)

// organizerFragment is one optional piece of the ORGANIZER line.
type organizerFragment struct {
	present func(o *models.Organizer) bool
	render  func(o *models.Organizer) string
}

// organizerFragments are concatenated in order. Without an email the line
// carries no calendar address at all.
var organizerFragments = []organizerFragment{
	{
		present: func(o *models.Organizer) bool { return true },
		render:  func(o *models.Organizer) string { return "ORGANIZER;CN=" + EscapeInQuotes(o.Name) },
	},
	{
		present: func(o *models.Organizer) bool { return o.SentBy != "" },
		render:  func(o *models.Organizer) string { return `;SENT-BY="mailto:` + EscapeInQuotes(o.SentBy) + `"` },
	},
	{
		present: func(o *models.Organizer) bool { return o.Email != "" && o.MailTo != "" },
		render:  func(o *models.Organizer) string { return ";EMAIL=" + Escape(o.Email) },
	},
	{
		present: func(o *models.Organizer) bool { return o.Email != "" },
		render:  func(o *models.Organizer) string { return ":mailto:" + Escape(calAddress(o)) },
	},
}

func calAddress(o *models.Organizer) string {
	if o.MailTo != "" {
		return o.MailTo
	}
	return o.Email
}

func organizerLine(o *models.Organizer) string {
	var sb strings.Builder
	for _, f := range organizerFragments {
		if f.present(o) {
			sb.WriteString(f.render(o))
		}
	}
	return sb.String()
}
