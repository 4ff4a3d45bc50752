package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/domain/events"
	"golang.org/x/sync/errgroup"
)

const syncConcurrency = 4

func newEventsCommand(opts *globalOptions) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and maintain campus events",
	}
	eventsCmd.AddCommand(newEventsListCommand())
	eventsCmd.AddCommand(newEventsSyncCommand(opts))
	return eventsCmd
}

func newEventsSyncCommand(opts *globalOptions) *cobra.Command {
	var eventIDs []int64

	cmd := &cobra.Command{
		Use:   "sync-counts",
		Short: "Recompute cached registration counts",
		Long: `Recompute each event's registration_count from its registration rows.

With no --event-id every event is synced. Running it repeatedly is safe.

Examples:
  server events sync-counts
  server events sync-counts --event-id 12 --event-id 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(eventIDs) == 0 {
				synced, err := a.events.SyncAllRegistrationCounts(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced registration counts for %d event(s).\n", synced)
				return nil
			}

			results, err := syncEvents(cmd.Context(), a.events, eventIDs)
			for _, result := range results {
				if result.Changed {
					fmt.Fprintf(cmd.OutOrStdout(), "Event %d: corrected from %d to %d\n", result.Event.ID, result.Previous, result.Current)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Event %d: count %d is correct\n", result.Event.ID, result.Current)
				}
			}
			return err
		},
	}
	cmd.Flags().Int64SliceVar(&eventIDs, "event-id", nil, "event id to sync (repeatable)")
	return cmd
}

type registrationSyncer interface {
	SyncRegistrationCount(ctx context.Context, eventID int64) (*events.SyncResult, error)
}

// syncEvents syncs ids concurrently and returns results in id order. The
// first failure cancels the remaining syncs.
func syncEvents(ctx context.Context, svc registrationSyncer, ids []int64) ([]events.SyncResult, error) {
	results := make([]*events.SyncResult, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			result, err := svc.SyncRegistrationCount(gctx, id)
			if err != nil {
				return fmt.Errorf("sync event %d: %w", id, err)
			}
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	out := make([]events.SyncResult, 0, len(ids))
	for _, result := range results {
		if result != nil {
			out = append(out, *result)
		}
	}
	return out, err
}

type eventSummary struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Category          string    `json:"category"`
	Location          string    `json:"location"`
	Date              time.Time `json:"date"`
	Status            string    `json:"status"`
	MaxCapacity       *int      `json:"max_capacity"`
	RegistrationCount int       `json:"registration_count"`
	IsFull            bool      `json:"is_full"`
}

func newEventsListCommand() *cobra.Command {
	var (
		limit     int
		serverURL string
		category  string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events from a running server",
		Long: `Query the public events API and print the results.

Examples:
  server events list --limit 20
  server events list --category workshop
  server events list --server http://localhost:8080 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := fmt.Sprintf("%s/api/v1/events?limit=%d", strings.TrimRight(serverURL, "/"), limit)
			if category != "" {
				url += "&category=" + category
			}
			body, err := fetch(cmd.Context(), url)
			if err != nil {
				return err
			}
			if format == "json" {
				_, err := cmd.OutOrStdout().Write(body)
				return err
			}

			var list []eventSummary
			if err := json.Unmarshal(body, &list); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			printEvents(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of events to retrieve")
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "UniSphere server URL")
	cmd.Flags().StringVar(&category, "category", "", "only events in this category")
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json)")
	return cmd
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func printEvents(out io.Writer, list []eventSummary) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No events found.")
		return
	}
	fmt.Fprintf(out, "Found %d event(s):\n\n", len(list))
	for i, event := range list {
		fmt.Fprintf(out, "%d. %s [%s]\n", i+1, event.Title, event.Status)

		parts := []string{event.Date.Local().Format("Jan 2, 2006 3:04 PM")}
		if event.Location != "" {
			parts = append(parts, event.Location)
		}
		parts = append(parts, seats(event))
		fmt.Fprintf(out, "   %s\n", strings.Join(parts, " | "))
	}
}

func seats(event eventSummary) string {
	if event.MaxCapacity == nil {
		return fmt.Sprintf("%d registered", event.RegistrationCount)
	}
	if event.IsFull {
		return fmt.Sprintf("full (%d/%d)", event.RegistrationCount, *event.MaxCapacity)
	}
	return fmt.Sprintf("%d/%d seats taken", event.RegistrationCount, *event.MaxCapacity)
}
