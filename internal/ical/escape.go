package ical

import "strings"

var (
	textEscaper   = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`)
	quotedEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `"`, `\"`)
	lineBreaks    = strings.NewReplacer("\r\n", `\n`, "\r", `\n`, "\n", `\n`)
)

// Escape makes text safe for an unquoted property value.
func Escape(text string) string {
	return lineBreaks.Replace(textEscaper.Replace(text))
}

// EscapeInQuotes is Escape for values inside a quoted parameter, where
// double quotes must be escaped too.
func EscapeInQuotes(text string) string {
	return lineBreaks.Replace(quotedEscaper.Replace(text))
}
