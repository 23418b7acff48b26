package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"icsgen/internal/ical"
	"icsgen/internal/models"
)

const DefaultStateFile = "sync-state.json"

// SyncState keeps track of which events have been published.
// The key is the source event ID, and the value is the generated UID.
type SyncState map[string]string

// EventSource lists upcoming events of one calendar.
type EventSource interface {
	GetUpcomingEvents(ctx context.Context, calendarID string, days int) ([]models.FetchedEvent, error)
}

// Publisher stores a complete calendar document under a UID.
type Publisher interface {
	PutEvent(ctx context.Context, uid, document string) error
}

// Options tune a Syncer.
type Options struct {
	DryRun    bool
	StatePath string // Defaults to DefaultStateFile
	ProdID    string // Defaults to ical.DefaultProductID
	Days      int    // Look-ahead window, defaults to 7
	Clock     ical.Clock
}

// Syncer generates iCalendar documents for upcoming source events and publishes them.
type Syncer struct {
	logger      *slog.Logger
	sources     []EventSource
	calendarIDs []string
	publisher   Publisher
	state       SyncState
	opts        Options
}

// NewSyncer creates a new Syncer.
func NewSyncer(logger *slog.Logger, sources []EventSource, calendarIDs []string, publisher Publisher, opts Options) (*Syncer, error) {
	if opts.StatePath == "" {
		opts.StatePath = DefaultStateFile
	}
	if opts.Days <= 0 {
		opts.Days = 7
	}
	if opts.Clock == nil {
		opts.Clock = ical.ClockFunc(time.Now)
	}

	state, err := loadState(opts.StatePath)
	if err != nil {
		// If the file doesn't exist, we can start with an empty state.
		if os.IsNotExist(err) {
			logger.Info("No sync state file found, starting fresh.", "file", opts.StatePath)
			state = make(SyncState)
		} else {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
	}

	return &Syncer{
		logger:      logger,
		sources:     sources,
		calendarIDs: calendarIDs,
		publisher:   publisher,
		state:       state,
		opts:        opts,
	}, nil
}

// Sync performs a full synchronization cycle.
func (s *Syncer) Sync(ctx context.Context) error {
	s.logger.Info("Starting sync cycle.")

	events := s.fetchAllEvents(ctx)
	s.logger.Info("Fetched all source events.", "count", len(events))

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.syncEvent(ctx, event); err != nil {
			s.logger.Error("Failed to sync event", "title", event.Event.Title, "error", err)
			// Continue with the next event even if one fails.
		}
	}

	if !s.opts.DryRun {
		if err := s.saveState(); err != nil {
			s.logger.Error("Failed to save sync state", "error", err)
		}
	}

	s.logger.Info("Sync cycle finished.")
	return nil
}

// fetchAllEvents retrieves events from all configured calendars of every source.
func (s *Syncer) fetchAllEvents(ctx context.Context) []models.FetchedEvent {
	var all []models.FetchedEvent
	for _, source := range s.sources {
		for _, calID := range s.calendarIDs {
			events, err := source.GetUpcomingEvents(ctx, calID, s.opts.Days)
			if err != nil {
				s.logger.Error("Could not fetch events for a calendar", "calendarID", calID, "error", err)
				continue
			}
			all = append(all, events...)
		}
	}
	return all
}

// syncEvent handles the logic for syncing a single event.
func (s *Syncer) syncEvent(ctx context.Context, event models.FetchedEvent) error {
	if uid, exists := s.state[event.ID]; exists {
		s.logger.Debug("Event already synced, skipping.", "title", event.Event.Title, "id", event.ID, "uid", uid)
		return nil
	}

	uid := ical.NewUID()
	gen := ical.NewGenerator(ical.WithIDGenerator(ical.StaticID(uid)), ical.WithClock(s.opts.Clock))
	body, err := gen.Generate(event.Event)
	if err != nil {
		return fmt.Errorf("failed to generate event: %w", err)
	}
	document := ical.WrapEvents(s.opts.ProdID, body)
	if _, err := ical.Check(document); err != nil {
		return fmt.Errorf("refusing to publish undecodable event: %w", err)
	}

	if s.opts.DryRun {
		s.logger.Info("[DRY RUN] Would publish new event", "title", event.Event.Title, "uid", uid, "source", event.Source)
		s.logger.Debug("[DRY RUN] Generated document", "document", document)
		return nil
	}

	s.logger.Info("New event found, publishing.", "title", event.Event.Title, "source", event.Source)
	if err := s.publisher.PutEvent(ctx, uid, document); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.state[event.ID] = uid
	return nil
}

// loadState loads the sync state from the JSON file.
func loadState(path string) (SyncState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(SyncState)
	}
	return state, nil
}

// saveState saves the current sync state to the JSON file.
func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(s.opts.StatePath, data, 0644)
}
