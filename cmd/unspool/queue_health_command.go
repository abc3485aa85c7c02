package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"unspool/internal/ipc"
	"unspool/internal/queueaccess"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				resp, err := q.DatabaseHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				renderDatabaseHealth(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func renderDatabaseHealth(out io.Writer, resp ipc.DatabaseHealthResponse) {
	fmt.Fprintf(out, "Database path: %s\n", resp.DBPath)
	fmt.Fprintf(out, "Database exists: %s\n", yesNo(resp.DatabaseExists))
	fmt.Fprintf(out, "Readable: %s\n", yesNo(resp.DatabaseReadable))
	fmt.Fprintf(out, "Schema version: %s\n", resp.SchemaVersion)
	fmt.Fprintf(out, "queue_items table present: %s\n", yesNo(resp.TableExists))
	if len(resp.ColumnsPresent) > 0 {
		fmt.Fprintf(out, "Columns: %s\n", sortedList(resp.ColumnsPresent))
	}
	if len(resp.MissingColumns) > 0 {
		fmt.Fprintf(out, "Missing columns: %s\n", sortedList(resp.MissingColumns))
	} else {
		fmt.Fprintln(out, "Missing columns: none")
	}
	fmt.Fprintf(out, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
	fmt.Fprintf(out, "Total items: %d\n", resp.TotalItems)
	if resp.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", resp.Error)
	}
}

func sortedList(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
