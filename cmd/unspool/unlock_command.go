package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"unspool/internal/catalog"
	"unspool/internal/dedup"
	"unspool/internal/logging"
	"unspool/internal/pipeline"
)

// newUnlockCommand processes container files in place without the daemon.
// Each path may be a file or a directory scanned one level deep.
func newUnlockCommand(ctx *commandContext) *cobra.Command {
	var (
		workers    int
		holdFailed bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "unlock <path>...",
		Short: "Unlock container files and place them in the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			resolved, skippedPaths, err := resolveContainerPaths(args)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			for _, path := range skippedPaths {
				fmt.Fprintf(stdout, "Skipping %s (unsupported extension)\n", path)
			}
			if len(resolved) == 0 {
				return fmt.Errorf("no supported container files found")
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{
				Level:            level,
				Format:           "console",
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}

			cat := catalog.Open(cfg.Dedup.CatalogPath, logger)
			engine := pipeline.New(cfg, cat, logger, pipeline.Options{
				Workers:     workerCount(workers, cfg.Workers.Count),
				StableOrder: true,
				HoldFailed:  holdFailed,
			})

			report, runErr := engine.RunBatch(cmd.Context(), resolved)
			if report == nil {
				return runErr
			}
			if ctx.JSONMode() {
				if err := writeJSON(cmd, buildUnlockReportView(report)); err != nil {
					return err
				}
				return runErr
			}

			printUnlockReport(stdout, report)
			if runErr != nil {
				return runErr
			}
			if tally := report.Tally(); tally.Failed > 0 {
				return fmt.Errorf("%d of %d files failed", tally.Failed, len(report.Results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of files to process at once (0 uses the configured count)")
	cmd.Flags().BoolVar(&holdFailed, "hold-failed", false, "Move sources that fail to unlock into the review directory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-stage progress logs")
	return cmd
}

func workerCount(flagValue, configured int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configured
}

func printUnlockReport(out io.Writer, report *pipeline.BatchReport) {
	headers := []string{"File", "Format", "Result", "Details"}
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		rows = append(rows, []string{
			filepath.Base(res.Input),
			formatFormatLabel(string(res.Format)),
			unlockResultLabel(res),
			unlockResultDetail(res),
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, nil))

	for _, res := range report.Results {
		for _, warn := range res.Warnings {
			fmt.Fprintf(out, "Warning: %s: %s\n", filepath.Base(res.Input), warn.Message)
		}
	}

	tally := report.Tally()
	fmt.Fprintf(out, "Added %d, duplicates %d, conflicts %d, failed %d, skipped %d in %s\n",
		tally.Added, tally.Duplicates, tally.Conflicts, tally.Failed, tally.Skipped,
		report.Elapsed.Round(100*time.Millisecond))
}

func unlockResultLabel(res pipeline.Result) string {
	switch res.State {
	case pipeline.StateUnlocked:
		switch res.Outcome {
		case dedup.OutcomeAdded:
			return "Added"
		case dedup.OutcomeDuplicate:
			return "Duplicate"
		case dedup.OutcomeConflict:
			return "Conflict"
		}
		return "Unlocked"
	case pipeline.StateFailed:
		if res.Stage != "" {
			return fmt.Sprintf("Failed (%s)", res.Stage)
		}
		return "Failed"
	case pipeline.StateSkipped:
		return "Skipped"
	}
	return string(res.State)
}

func unlockResultDetail(res pipeline.Result) string {
	switch res.State {
	case pipeline.StateUnlocked:
		switch res.Outcome {
		case dedup.OutcomeDuplicate, dedup.OutcomeConflict:
			if res.Match.Path != "" {
				return "matches " + res.Match.Path
			}
		}
		if res.Output != "" {
			detail := res.Output
			if res.Size > 0 {
				detail += " (" + formatByteSize(res.Size) + ")"
			}
			return detail
		}
	case pipeline.StateFailed:
		if res.Err != nil {
			return res.Err.Error()
		}
	case pipeline.StateSkipped:
		return "cancelled before processing"
	}
	return "-"
}

type unlockReportView struct {
	BatchID        string             `json:"batch_id"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
	Added          int                `json:"added"`
	Duplicates     int                `json:"duplicates"`
	Conflicts      int                `json:"conflicts"`
	Failed         int                `json:"failed"`
	Skipped        int                `json:"skipped"`
	Results        []unlockResultView `json:"results"`
}

type unlockResultView struct {
	File            string   `json:"file"`
	State           string   `json:"state"`
	Stage           string   `json:"stage,omitempty"`
	Outcome         string   `json:"outcome,omitempty"`
	Format          string   `json:"format,omitempty"`
	Codec           string   `json:"codec,omitempty"`
	Output          string   `json:"output,omitempty"`
	MatchPath       string   `json:"match_path,omitempty"`
	Title           string   `json:"title,omitempty"`
	Artists         []string `json:"artists,omitempty"`
	Album           string   `json:"album,omitempty"`
	DurationSeconds int      `json:"duration_seconds,omitempty"`
	SizeBytes       int64    `json:"size_bytes,omitempty"`
	Error           string   `json:"error,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

func buildUnlockReportView(report *pipeline.BatchReport) unlockReportView {
	tally := report.Tally()
	view := unlockReportView{
		BatchID:        report.BatchID,
		ElapsedSeconds: report.Elapsed.Seconds(),
		Added:          tally.Added,
		Duplicates:     tally.Duplicates,
		Conflicts:      tally.Conflicts,
		Failed:         tally.Failed,
		Skipped:        tally.Skipped,
	}
	for _, res := range report.Results {
		entry := unlockResultView{
			File:            res.Input,
			State:           string(res.State),
			Stage:           string(res.Stage),
			Outcome:         string(res.Outcome),
			Format:          string(res.Format),
			Codec:           string(res.Codec),
			Output:          res.Output,
			MatchPath:       res.Match.Path,
			Title:           res.Title,
			Artists:         res.Artists,
			Album:           res.Album,
			DurationSeconds: int(res.Duration / time.Second),
			SizeBytes:       res.Size,
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		for _, warn := range res.Warnings {
			entry.Warnings = append(entry.Warnings, strings.TrimSpace(string(warn.Stage)+": "+warn.Message))
		}
		view.Results = append(view.Results, entry)
	}
	return view
}
