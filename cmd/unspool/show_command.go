package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"unspool/internal/ipc"
	"unspool/internal/logging"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var itemID int64
	var component string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				streamed, err := streamLogEvents(cmd, client, lines, follow, itemID, component)
				if err != nil {
					return err
				}
				if streamed {
					return nil
				}
				// No event stream available; fall back to the raw log file.
				return tailLogFile(cmd, client, lines, follow)
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of entries to show (0 for all)")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only show entries for one queue item")
	cmd.Flags().StringVar(&component, "component", "", "Only show entries from one component")
	return cmd
}

// streamLogEvents renders structured events from the daemon's stream hub.
// It reports false when the daemon has no buffered events to serve, so the
// caller can fall back to plain file tailing.
func streamLogEvents(cmd *cobra.Command, client *ipc.Client, lines int, follow bool, itemID int64, component string) (bool, error) {
	req := ipc.LogEventsRequest{
		Tail:      true,
		Limit:     lines,
		ItemID:    itemID,
		Component: component,
	}
	resp, err := client.LogEvents(req)
	if err != nil {
		return false, fmt.Errorf("stream logs: %w", err)
	}
	if resp == nil {
		return false, errors.New("log events response missing")
	}
	if len(resp.Events) == 0 && resp.Next == 0 {
		return false, nil
	}

	out := cmd.OutOrStdout()
	printed := false
	for _, evt := range resp.Events {
		fmt.Fprintln(out, formatLogEvent(evt))
		printed = true
	}
	if !follow {
		if !printed {
			fmt.Fprintln(out, "No log entries available")
		}
		return true, nil
	}

	since := resp.Next
	for {
		select {
		case <-cmd.Context().Done():
			return true, nil
		default:
		}
		resp, err := client.LogEvents(ipc.LogEventsRequest{
			Since:      since,
			Limit:      200,
			Follow:     true,
			WaitMillis: 1000,
			ItemID:     itemID,
			Component:  component,
		})
		if err != nil {
			return true, fmt.Errorf("stream logs: %w", err)
		}
		if resp == nil {
			return true, errors.New("log events response missing")
		}
		for _, evt := range resp.Events {
			fmt.Fprintln(out, formatLogEvent(evt))
		}
		since = resp.Next
	}
}

func tailLogFile(cmd *cobra.Command, client *ipc.Client, lines int, follow bool) error {
	initialLimit := lines
	if initialLimit < 0 {
		initialLimit = 0
	}
	initialOffset := int64(-1)
	if initialLimit == 0 {
		initialOffset = 0
	}

	ctx := cmd.Context()
	offset := initialOffset
	limit := initialLimit
	printed := false

	for {
		req := ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     follow,
			WaitMillis: 1000,
		}
		resp, err := client.LogTail(req)
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func formatLogEvent(evt ipc.LogEvent) string {
	ts := evt.Timestamp.Format("2006-01-02 15:04:05")
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{ts, level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", component))
	}
	itemID := ""
	if evt.ItemID > 0 {
		itemID = strconv.FormatInt(evt.ItemID, 10)
	}
	subject := logging.FormatSubject(itemID, evt.Stage)
	line := strings.Join(parts, " ")
	if subject != "" {
		line += " " + subject
	}
	message := strings.TrimSpace(evt.Message)
	if message != "" {
		line += " – " + message
	}
	if len(evt.Details) == 0 {
		return line
	}
	builder := strings.Builder{}
	builder.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		builder.WriteString("\n    - ")
		builder.WriteString(detail.Label)
		builder.WriteString(": ")
		builder.WriteString(detail.Value)
	}
	return builder.String()
}
