package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jobfoundry/apply-cli/internal/model"
	"github.com/jobfoundry/apply-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect job run history",
	Long:  "Commands for listing, viewing, and summarizing archived runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		outcome, _ := cmd.Flags().GetString("outcome")
		urlFilter, _ := cmd.Flags().GetString("url")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status:  model.TaskStatus(status),
			Outcome: model.ResultStatus(outcome),
			URL:     urlFilter,
			Limit:   limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		since, _ := cmd.Flags().GetDuration("since")
		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		if since > 0 {
			cutoff := time.Now().Add(-since)
			kept := runs[:0]
			for _, r := range runs {
				if !r.FinishedAt.Before(cutoff) {
					kept = append(kept, r)
				}
			}
			runs = kept
		}

		stats := computeRunStats(runs)
		formatRunStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by task status (SUCCESS, FAILURE, REVOKED)")
	runsListCmd.Flags().String("outcome", "", "filter by result outcome (success, duplicate, unavailable, visa_restricted)")
	runsListCmd.Flags().String("url", "", "filter by job posting URL")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total          int
	Succeeded      int
	Failed         int
	Revoked        int
	Duplicate      int
	Unavailable    int
	VisaRestricted int
	Tailored       int
	AvgDurSecs     float64
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []store.Run) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDurMS int64
	var durCount int

	for _, r := range runs {
		switch r.Status {
		case model.TaskSuccess:
			s.Succeeded++
			totalDurMS += r.DurationMS
			durCount++
		case model.TaskFailure:
			s.Failed++
		case model.TaskRevoked:
			s.Revoked++
		}

		if r.Result == nil {
			continue
		}
		switch r.Result.Status {
		case model.ResultDuplicate:
			s.Duplicate++
		case model.ResultUnavailable:
			s.Unavailable++
		case model.ResultVisaRestricted:
			s.VisaRestricted++
		case model.ResultSuccess:
			if r.Result.Record != nil && r.Result.Record.Resume.Status == model.DocumentGenerated {
				s.Tailored++
			}
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = float64(totalDurMS) / 1000 / float64(durCount)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []store.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tURL\tSTATUS\tOUTCOME\tSCORE\tFINISHED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t---\t------\t-------\t-----\t--------\t--------")

	for _, r := range runs {
		url := r.URL
		if len(url) > 40 {
			url = url[:37] + "..."
		}

		score := ""
		if r.Result != nil && r.Result.Record != nil {
			score = fmt.Sprintf("%d", r.Result.Record.Evaluation.Score)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			url,
			r.Status,
			r.Outcome(),
			score,
			r.FinishedAt.Format("2006-01-02 15:04"),
			(time.Duration(r.DurationMS) * time.Millisecond).Round(time.Second).String(),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Succeeded:\t%d\n", s.Succeeded)
	_, _ = fmt.Fprintf(w, "  Duplicates:\t%d\n", s.Duplicate)
	_, _ = fmt.Fprintf(w, "  Unavailable:\t%d\n", s.Unavailable)
	_, _ = fmt.Fprintf(w, "  Visa restricted:\t%d\n", s.VisaRestricted)
	_, _ = fmt.Fprintf(w, "  Documents tailored:\t%d\n", s.Tailored)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Revoked:\t%d\n", s.Revoked)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
