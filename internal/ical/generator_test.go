package ical

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"icsgen/internal/models"
)

var fixedNow = time.Date(2024, 2, 20, 8, 0, 0, 0, time.UTC)

func testGenerator() *Generator {
	return NewGenerator(
		WithIDGenerator(StaticID("test-uid")),
		WithClock(ClockFunc(func() time.Time { return fixedNow })),
	)
}

func mustGenerate(t *testing.T, g *Generator, e models.Event) string {
	t.Helper()
	out, err := g.Generate(e)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return out
}

func lines(out string) []string {
	return strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
}

func TestGenerateGolden(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := models.NewTimedEvent("Meeting; Q1,Review", start, start.Add(time.Hour))
	event.Description = &models.Description{Plain: "Quarterly review", HTML: "<p>Quarterly, review</p>"}
	event.Location = &models.Location{
		Title:   "HQ, Room 4",
		Address: "1 Main St; Springfield",
		Geo:     &models.Geo{Lat: 37.386013, Lon: -122.082932},
	}
	event.Organizer = &models.Organizer{
		Name:   `Doe, "JD"`,
		Email:  "jd@example.com",
		MailTo: "team@example.com",
		SentBy: "assistant@example.com",
	}
	event.URL = "https://example.com/q1?a=1,2"

	want := strings.Join([]string{
		"BEGIN:VEVENT",
		"UID:test-uid",
		"SEQUENCE:0",
		"DTSTAMP:20240220T080000Z",
		`SUMMARY:Meeting\; Q1\,Review`,
		"DESCRIPTION:Quarterly review",
		`X-ALT-DESC;FMTTYPE=text/html:<p>Quarterly\, review</p>`,
		"DTSTART:20240301T100000Z",
		"DTEND:20240301T110000Z",
		`LOCATION:HQ\, Room 4`,
		`1 Main St\; Springfield`,
		"GEO:37.386013;-122.082932",
		`ORGANIZER;CN=Doe\, \"JD\";SENT-BY="mailto:assistant@example.com";EMAIL=jd@example.com:mailto:team@example.com`,
		`URL;VALUE=URI:https://example.com/q1?a=1\,2`,
	}, "\r\n") + "\r\n"

	if got := mustGenerate(t, testGenerator(), event); got != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerateMinimal(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := mustGenerate(t, testGenerator(), models.NewTimedEvent("Standup", start, start.Add(15*time.Minute)))

	want := []string{
		"BEGIN:VEVENT",
		"UID:test-uid",
		"SEQUENCE:0",
		"DTSTAMP:20240220T080000Z",
		"SUMMARY:Standup",
		"DTSTART:20240301T100000Z",
		"DTEND:20240301T101500Z",
	}
	got := lines(out)
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), out)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if strings.Contains(out, "END:VEVENT") {
		t.Error("output must not close the VEVENT")
	}
}

func TestGenerateEveryLineEndsWithCRLF(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := models.NewAllDayEvent("Line\nbreaks\r\neverywhere", start)
	event.Location = &models.Location{Title: "a\rb", Address: "c\nd"}

	out := mustGenerate(t, testGenerator(), event)
	if !strings.HasSuffix(out, "\r\n") {
		t.Fatalf("output does not end with CRLF: %q", out)
	}
	for _, l := range lines(out) {
		if strings.ContainsAny(l, "\r\n") {
			t.Errorf("line contains a raw line break: %q", l)
		}
	}
}

func TestGenerateTimedEvent(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := mustGenerate(t, testGenerator(), models.NewTimedEvent("Meeting; Q1,Review", start, start.Add(time.Hour)))

	for _, want := range []string{
		`SUMMARY:Meeting\; Q1\,Review` + "\r\n",
		"DTSTART:20240301T100000Z\r\n",
		"DTEND:20240301T110000Z\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "VALUE=DATE") {
		t.Errorf("timed event must not use VALUE=DATE:\n%s", out)
	}
}

func TestGenerateAllDay(t *testing.T) {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	t.Run("single day", func(t *testing.T) {
		out := mustGenerate(t, testGenerator(), models.NewAllDayEvent("Holiday", start))
		if !strings.Contains(out, "DTSTART;VALUE=DATE:20240105\r\n") {
			t.Errorf("missing all-day DTSTART:\n%s", out)
		}
		if strings.Contains(out, "DTEND") {
			t.Errorf("single-day event must not have DTEND:\n%s", out)
		}
	})

	t.Run("range", func(t *testing.T) {
		event := models.NewAllDayEvent("Trip", start).WithEnd(start.AddDate(0, 0, 3))
		out := mustGenerate(t, testGenerator(), event)
		if !strings.Contains(out, "DTSTART;VALUE=DATE:20240105\r\nDTEND;VALUE=DATE:20240108\r\n") {
			t.Errorf("missing all-day range:\n%s", out)
		}
	})
}

func TestGeneratePlainDescriptionIsNotEscaped(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := models.NewAllDayEvent("Notes", start)
	event.Description = &models.Description{Plain: `a;b,c\d`, HTML: `<i>a;b</i>`}

	out := mustGenerate(t, testGenerator(), event)
	if !strings.Contains(out, "DESCRIPTION:a;b,c\\d\r\n") {
		t.Errorf("plain description should be emitted verbatim:\n%s", out)
	}
	if !strings.Contains(out, `X-ALT-DESC;FMTTYPE=text/html:<i>a\;b</i>`+"\r\n") {
		t.Errorf("html description should be escaped:\n%s", out)
	}
}

func TestGenerateLocation(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		location models.Location
		want     []string
	}{
		{
			"title only",
			models.Location{Title: "Office"},
			[]string{"LOCATION:Office"},
		},
		{
			"with address",
			models.Location{Title: "Office", Address: "2 High St, Town"},
			[]string{"LOCATION:Office", `2 High St\, Town`},
		},
		{
			"with geo",
			models.Location{Title: "Office", Geo: &models.Geo{Lat: 52.52, Lon: 13.405}},
			[]string{"LOCATION:Office", "GEO:52.52;13.405"},
		},
		{
			"integral geo",
			models.Location{Title: "Null Island", Geo: &models.Geo{Lat: 0, Lon: -1}},
			[]string{"LOCATION:Null Island", "GEO:0;-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := models.NewAllDayEvent("x", start)
			loc := tt.location
			event.Location = &loc

			got := lines(mustGenerate(t, testGenerator(), event))
			tail := got[len(got)-len(tt.want):]
			for i := range tt.want {
				if tail[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, tail[i], tt.want[i])
				}
			}
		})
	}
}

func TestGenerateOrganizer(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		organizer models.Organizer
		want      string
	}{
		{"name only", models.Organizer{Name: "Alice"}, "ORGANIZER;CN=Alice"},
		{"email", models.Organizer{Name: "Bob", Email: "b@x.com"}, "ORGANIZER;CN=Bob:mailto:b@x.com"},
		{
			"email and mailTo",
			models.Organizer{Name: "Bob", Email: "b@x.com", MailTo: "alias@x.com"},
			"ORGANIZER;CN=Bob;EMAIL=b@x.com:mailto:alias@x.com",
		},
		{"mailTo without email", models.Organizer{Name: "Bob", MailTo: "alias@x.com"}, "ORGANIZER;CN=Bob"},
		{
			"sentBy without email",
			models.Organizer{Name: "Alice", SentBy: "boss@x.com"},
			`ORGANIZER;CN=Alice;SENT-BY="mailto:boss@x.com"`,
		},
		{
			"sentBy with quotes",
			models.Organizer{Name: "Alice", Email: "a@x.com", SentBy: `"boss"@x.com`},
			`ORGANIZER;CN=Alice;SENT-BY="mailto:\"boss\"@x.com":mailto:a@x.com`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := models.NewAllDayEvent("x", start)
			org := tt.organizer
			event.Organizer = &org

			got := lines(mustGenerate(t, testGenerator(), event))
			if last := got[len(got)-1]; last != tt.want {
				t.Errorf("organizer line = %q, want %q", last, tt.want)
			}
		})
	}
}

func TestGenerateRejectsInvalidEvent(t *testing.T) {
	out, err := testGenerator().Generate(models.Event{Title: "x", Start: fixedNow})
	if !errors.Is(err, models.ErrMissingSchedule) {
		t.Fatalf("expected ErrMissingSchedule, got %v", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

func TestGenerateReadsCollaboratorsOnce(t *testing.T) {
	var ids, clocks atomic.Int32
	g := NewGenerator(
		WithIDGenerator(IDGeneratorFunc(func() string { ids.Add(1); return "id" })),
		WithClock(ClockFunc(func() time.Time { clocks.Add(1); return fixedNow })),
	)
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mustGenerate(t, g, models.NewTimedEvent("x", start, start))

	if ids.Load() != 1 || clocks.Load() != 1 {
		t.Errorf("expected one call each, got ids=%d clock=%d", ids.Load(), clocks.Load())
	}
}

func TestGenerateUniqueUIDs(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := models.NewTimedEvent("Repeat", start, start.Add(time.Hour))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		out, err := Generate(event)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		uid := lines(out)[1]
		if !strings.HasPrefix(uid, "UID:") {
			t.Fatalf("second line is not a UID: %q", uid)
		}
		if seen[uid] {
			t.Fatalf("duplicate %s", uid)
		}
		seen[uid] = true
	}
}

func TestFormatCoordinate(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{52.52, "52.52"},
		{-122.082932, "-122.082932"},
		{0, "0"},
		{0.000001, "0.000001"},
		{0.0000001, "1e-7"},
		{-1.5e-7, "-1.5e-7"},
		{123456789012345680000, "123456789012345680000"},
		{1e21, "1e+21"},
		{math.Inf(1), "Infinity"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := formatCoordinate(tt.in); got != tt.want {
			t.Errorf("formatCoordinate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
