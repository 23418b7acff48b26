package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"icsgen/internal/caldav"
	"icsgen/internal/google"
	"icsgen/internal/ical"
	"icsgen/internal/models"
	"icsgen/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "icsgen",
		Usage: "Generate iCalendar VEVENT components and publish them to CalDAV.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
				Usage:   "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:    "prodid",
				EnvVars: []string{"ICSGEN_PRODID"},
				Value:   ical.DefaultProductID,
				Usage:   "PRODID of wrapped calendar documents",
			},
		},
		Commands: []*cli.Command{
			generateCommand(),
			authCommand(),
			syncCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Render one event file (JSON or YAML) as a VEVENT.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Value: "-", Usage: "event file, - for stdin"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "json or yaml, guessed from the input extension when empty"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "-", Usage: "output file, - for stdout"},
			&cli.BoolFlag{Name: "wrap", Usage: "emit a complete VCALENDAR document"},
			&cli.BoolFlag{Name: "check", Usage: "decode the wrapped document and warn if it is not parseable"},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))

			event, err := readEvent(c.String("input"), c.String("format"))
			if err != nil {
				return err
			}

			body, err := ical.Generate(event)
			if err != nil {
				return err
			}

			document := ical.WrapEvents(c.String("prodid"), body)
			if c.Bool("check") {
				if events, err := ical.Check(document); err != nil {
					logger.Warn("Generated event is not strictly parseable", "error", err)
				} else {
					logger.Info("Generated event parsed successfully", "events", len(events))
				}
			}

			out := body
			if c.Bool("wrap") {
				out = document
			}
			if err := writeOutput(c.String("output"), out); err != nil {
				return err
			}
			logger.Debug("Generated event", "title", event.Title, "allDay", event.IsAllDay())
			return nil
		},
	}
}

func readEvent(path, format string) (models.Event, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.Event{}, fmt.Errorf("unable to open event file: %w", err)
		}
		defer f.Close()
		r = f
	}

	f := models.Format(strings.ToLower(format))
	if f == "" {
		f = models.FormatFromPath(path)
	}
	if f == "yml" {
		f = models.FormatYAML
	}
	return models.DecodeEvent(r, f)
}

func writeOutput(path, text string) error {
	if path == "-" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("unable to write output file: %w", err)
	}
	return nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client-id", EnvVars: []string{"GOOGLE_CLIENT_ID"}},
			&cli.StringFlag{Name: "client-secret", EnvVars: []string{"GOOGLE_CLIENT_SECRET"}},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))
			logger.Info("Starting Google authentication flow.")

			config, err := google.GetOAuthConfigForAuthFlow(c.String("client-id"), c.String("client-secret"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			tokenFile := google.TokenFile(strings.TrimSpace(accountName))

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Publish upcoming Google Calendar events to a CalDAV calendar.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run the sync cycle once and exit."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be published without making changes."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run sync every N seconds. Overrides --once."},
			&cli.IntFlag{Name: "days", Value: 7, Usage: "Number of days ahead to fetch."},
			&cli.StringFlag{Name: "client-id", EnvVars: []string{"GOOGLE_CLIENT_ID"}},
			&cli.StringFlag{Name: "client-secret", EnvVars: []string{"GOOGLE_CLIENT_SECRET"}},
			&cli.StringSliceFlag{Name: "calendar-id", EnvVars: []string{"GOOGLE_CALENDAR_IDS"}, Usage: "Google calendar IDs, all calendars when empty"},
			&cli.StringFlag{Name: "caldav-endpoint", EnvVars: []string{"CALDAV_ENDPOINT"}, Value: caldav.DefaultEndpoint},
			&cli.StringFlag{Name: "caldav-username", EnvVars: []string{"CALDAV_USERNAME", "ICLOUD_USERNAME"}},
			&cli.StringFlag{Name: "caldav-password", EnvVars: []string{"CALDAV_PASSWORD", "ICLOUD_APP_SPECIFIC_PASSWORD"}},
			&cli.StringFlag{Name: "caldav-calendar", EnvVars: []string{"CALDAV_CALENDAR_NAME", "ICLOUD_CALENDAR_NAME"}},
			&cli.PathFlag{Name: "state", EnvVars: []string{"SYNC_STATE_FILE"}, Value: syncer.DefaultStateFile},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger(c.String("log-level"))

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			// Load all Google clients for all authenticated accounts
			accounts, err := google.GetTokenAccounts(".")
			if err != nil {
				return fmt.Errorf("could not find any google accounts, did you run auth command? %w", err)
			}
			if len(accounts) == 0 {
				return fmt.Errorf("no google accounts found. Run the 'auth' command first")
			}

			var gClients []*google.CalendarClient
			for _, acc := range accounts {
				gClient, err := google.NewClient(c.Context, logger, c.String("client-id"), c.String("client-secret"), acc)
				if err != nil {
					return fmt.Errorf("failed to create google client for account %s: %w", acc, err)
				}
				gClients = append(gClients, gClient)
			}
			logger.Info("Initialized Google clients for all accounts.", "count", len(gClients))

			calendarIDs := splitIDs(c.StringSlice("calendar-id"))
			if len(calendarIDs) == 0 {
				calendarIDs, err = gClients[0].DiscoverGoogleCalendars(c.Context)
				if err != nil {
					return err
				}
				logger.Info("Discovered Google calendars.", "count", len(calendarIDs))
			}

			var publisher syncer.Publisher
			if !c.Bool("dry-run") {
				publisher, err = caldav.NewClient(c.Context, logger, c.String("caldav-endpoint"),
					c.String("caldav-username"), c.String("caldav-password"), c.String("caldav-calendar"))
				if err != nil {
					return fmt.Errorf("failed to create caldav client: %w", err)
				}
			}

			sources := make([]syncer.EventSource, 0, len(gClients))
			for _, gc := range gClients {
				sources = append(sources, gc)
			}

			s, err := syncer.NewSyncer(logger, sources, calendarIDs, publisher, syncer.Options{
				DryRun:    c.Bool("dry-run"),
				StatePath: c.Path("state"),
				ProdID:    c.String("prodid"),
				Days:      c.Int("days"),
			})
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := s.Sync(c.Context); err != nil {
						logger.Error("Sync cycle failed", "error", err)
					}
					select {
					case <-c.Context.Done():
						return c.Context.Err()
					case <-ticker.C:
					}
				}
			}

			// --once is the default behavior if --watch is not set
			logger.Info("Running a single sync cycle.")
			if err := s.Sync(c.Context); err != nil {
				return fmt.Errorf("single sync cycle failed: %w", err)
			}
			return nil
		},
	}
}

// splitIDs accepts both repeated flags and a comma-separated env var.
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.RFC1123Z,
	}))
}
