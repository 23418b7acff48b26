package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"icsgen/internal/ical"
	"icsgen/internal/models"
)

const (
	credentialsFile = "credentials.json"
	allDayLayout    = "2006-01-02"
)

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewClient creates a new Google Calendar client.
// It handles loading credentials and setting up an authenticated HTTP client.
// The accountName selects the token file, e.g. token-work.json.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, accountName string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	tokenFile := TokenFile(accountName)
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", accountName, err)
	}

	client := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &CalendarClient{service: service, logger: logger}, nil
}

// GetUpcomingEvents fetches upcoming events from the specified calendar.
func (c *CalendarClient) GetUpcomingEvents(ctx context.Context, calendarID string, days int) ([]models.FetchedEvent, error) {
	c.logger.Debug("Fetching upcoming events", "calendarID", calendarID, "days", days)
	now := time.Now().UTC()
	tmax := now.Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	tmin := now.Format(time.RFC3339)

	events, err := c.service.Events.List(calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(tmin).
		TimeMax(tmax).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events.Items), "calendarID", calendarID)
	return toInternalEvents(c.logger, events.Items, calendarID), nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func toInternalEvents(logger *slog.Logger, googleEvents []*calendar.Event, source string) []models.FetchedEvent {
	var internalEvents []models.FetchedEvent
	for _, item := range googleEvents {
		event, err := toEvent(item)
		if err != nil {
			logger.Warn("Skipping Google event", "id", item.Id, "title", item.Summary, "error", err)
			continue
		}

		internalEvents = append(internalEvents, models.FetchedEvent{
			ID:     item.Id,
			Source: fmt.Sprintf("google-%s", source),
			Event:  event,
		})
	}
	return internalEvents
}

func toEvent(item *calendar.Event) (models.Event, error) {
	if item.Start == nil || item.End == nil {
		return models.Event{}, fmt.Errorf("event has no start or end")
	}

	var event models.Event
	if item.Start.Date != "" {
		start, err := time.Parse(allDayLayout, item.Start.Date)
		if err != nil {
			return models.Event{}, fmt.Errorf("invalid start date: %w", err)
		}
		event = models.NewAllDayEvent(item.Summary, start)

		// Google end dates are exclusive; a one-day event ends the next day.
		if item.End.Date != "" {
			end, err := time.Parse(allDayLayout, item.End.Date)
			if err != nil {
				return models.Event{}, fmt.Errorf("invalid end date: %w", err)
			}
			if end.After(start.AddDate(0, 0, 1)) {
				event = event.WithEnd(end)
			}
		}
	} else {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return models.Event{}, fmt.Errorf("invalid start time: %w", err)
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return models.Event{}, fmt.Errorf("invalid end time: %w", err)
		}
		event = models.NewTimedEvent(item.Summary, start, end)
	}

	if item.Description != "" {
		// DESCRIPTION is written verbatim, so line breaks must be escaped here.
		event.Description = &models.Description{Plain: ical.Escape(item.Description)}
	}
	if item.Location != "" {
		event.Location = &models.Location{Title: item.Location}
	}
	// An organizer without an address would render as a property with no value.
	if o := item.Organizer; o != nil && o.Email != "" {
		name := o.DisplayName
		if name == "" {
			name = o.Email
		}
		event.Organizer = &models.Organizer{Name: name, Email: o.Email}
	}
	event.URL = item.HtmlLink

	return event, nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// TokenFile is the file holding the token of an account.
func TokenFile(accountName string) string {
	return "token-" + accountName + ".json"
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts that have a token file in dir.
func GetTokenAccounts(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}

// DiscoverGoogleCalendars finds all calendars associated with the authenticated account.
func (c *CalendarClient) DiscoverGoogleCalendars(ctx context.Context) ([]string, error) {
	list, err := c.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	var calendarIDs []string
	for _, item := range list.Items {
		calendarIDs = append(calendarIDs, item.Id)
	}
	return calendarIDs, nil
}
