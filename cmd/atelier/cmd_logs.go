package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"atelier/pkg/eventlog"

	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail      int
	follow    bool
	agentID   string
	taskID    string
	eventType string
}

// newLogsCmd creates the "atelier logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query and tail coordinator events",
		Long:  "Displays submission, result, revert and channel events from the\ncoordinator event log. Optionally filter by agent, task or type.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			db, err := openStateDB(paths.StateDBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			reader := eventlog.NewReader(db)
			w := cmd.OutOrStdout()

			if cfg.follow {
				return followLogs(cmd.Context(), reader, w, cfg)
			}
			return printLogs(cmd.Context(), reader, w, cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "poll for new events every 1s")
	cmd.Flags().StringVar(&cfg.agentID, "agent", "", "filter by agent id")
	cmd.Flags().StringVar(&cfg.taskID, "task", "", "filter by task id")
	cmd.Flags().StringVar(&cfg.eventType, "type", "", "filter by event type (submit, result, revert, ...)")

	return cmd
}

func queryOpts(cfg logsConfig) eventlog.QueryOpts {
	return eventlog.QueryOpts{
		AgentID:   cfg.agentID,
		TaskID:    cfg.taskID,
		EventType: cfg.eventType,
		Limit:     cfg.tail,
	}
}

// printLogs displays the last N matching events in chronological order.
func printLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg logsConfig) error {
	events, err := reader.Query(ctx, queryOpts(cfg))
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Fprintln(w, "no events found")
		return nil
	}

	reverseEvents(events)
	for i := range events {
		formatEvent(w, &events[i])
	}
	return nil
}

// followLogs displays the initial batch, then polls for new events.
func followLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg logsConfig) error {
	events, err := reader.Query(ctx, queryOpts(cfg))
	if err != nil {
		return err
	}

	var lastID int64
	reverseEvents(events)
	for i := range events {
		formatEvent(w, &events[i])
		lastID = events[i].ID
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			opts := queryOpts(cfg)
			opts.Limit = 100
			fresh, err := reader.Query(ctx, opts)
			if err != nil {
				return err
			}
			reverseEvents(fresh)
			for i := range fresh {
				if fresh[i].ID <= lastID {
					continue
				}
				formatEvent(w, &fresh[i])
				lastID = fresh[i].ID
			}
		}
	}
}

// reverseEvents reverses a slice of events in place (newest-first to
// chronological).
func reverseEvents(events []eventlog.Event) {
	for i := 0; i < len(events)/2; i++ {
		j := len(events) - 1 - i
		events[i], events[j] = events[j], events[i]
	}
}

// formatEvent writes a single event in a human-readable format.
// Format: timestamp | type | task_id | agent_id | source | payload
func formatEvent(w io.Writer, evt *eventlog.Event) {
	fmt.Fprintf(w, "%s | %-16s | %-12s | %-12s | %-8s | %s\n",
		evt.CreatedAt.Format("2006-01-02 15:04:05"),
		evt.Type, shorten(evt.TaskID), shorten(evt.AgentID), evt.Source, evt.Payload)
}

// shorten trims long ids (uuids) for column display.
func shorten(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
