package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stxkxs/ttr/internal/config"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/report"
	"github.com/stxkxs/ttr/internal/state"
)

var (
	historyLimit   int
	historyFormat  string
	historySeconds bool
	pruneKeep      int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and inspect past reports",
	Long: `Every analysis is recorded in the history store configured under
history: in ttr.yaml (sqlite at .ttr/history.db by default).

Examples:
  ttr history              # recent runs
  ttr history show 3f2a9c  # re-print a report by ID prefix
  ttr history rm 3f2a9c
  ttr history prune --keep 20`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded report",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a recorded run",
	Args:    cobra.ExactArgs(1),
	RunE:    runHistoryRm,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to list (0 for all)")
	historyShowCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "output format: text, json, csv")
	historyShowCmd.Flags().BoolVar(&historySeconds, "seconds", false, "include the raw seconds column")
	historyPruneCmd.Flags().IntVar(&pruneKeep, "keep", 20, "number of newest runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyRmCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func withHistory(fn func(cfg *config.Config, mgr *state.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HistoryEnabled() {
		return ttrErrors.New(ttrErrors.CodeConfigInvalid, "history is disabled").
			WithSuggestion("Set history.enabled: true in ttr.yaml")
	}

	mgr, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()
	return fn(cfg, mgr)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withHistory(func(_ *config.Config, mgr *state.Manager) error {
		runs, err := mgr.List(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs found.")
			return nil
		}

		fmt.Fprintln(out, heading("Recent Runs:"))
		for _, run := range runs {
			fmt.Fprintf(out, "%s %s  %s  (%s, %s)\n",
				statusIcon(run.Status),
				run.ShortID(),
				run.Source,
				run.Status,
				humanize.Time(run.StartedAt),
			)
			switch {
			case run.Error != "":
				fmt.Fprintf(out, "   Error: %s\n", run.Error)
			case run.Result != nil && run.Result.Summary != nil:
				fmt.Fprintf(out, "   %s agents, mean %.1fs, median %.1fs\n",
					humanize.Comma(int64(run.RowCount())),
					run.Result.Summary.Mean,
					run.Result.Summary.Median,
				)
			case run.Result != nil:
				fmt.Fprintln(out, dimStyle.Render("   no qualifying agents"))
			}
		}
		return nil
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(historyFormat)
	if err != nil {
		return err
	}

	return withHistory(func(_ *config.Config, mgr *state.Manager) error {
		run, err := mgr.Get(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == report.FormatText {
			fmt.Fprintf(out, "Run:     %s\n", run.ID)
			fmt.Fprintf(out, "Source:  %s\n", run.Source)
			fmt.Fprintf(out, "Status:  %s %s\n", statusIcon(run.Status), run.Status)
			fmt.Fprintf(out, "Started: %s (%s)\n", run.StartedAt.Local().Format(time.RFC3339), humanize.Time(run.StartedAt))
			if d := run.Duration(); d > 0 {
				fmt.Fprintf(out, "Took:    %s\n", d.Round(time.Millisecond))
			}
		}

		if run.Result == nil {
			if run.Error != "" {
				fmt.Fprintf(out, "Error:   %s\n", run.Error)
			}
			return nil
		}
		if format == report.FormatText && run.Result.Stats.Records > 0 {
			fmt.Fprintf(out, "Records: %s (%s sentinel, %s unpaired, %s implausible)\n",
				humanize.Comma(int64(run.Result.Stats.Records)),
				humanize.Comma(int64(run.Result.Stats.SentinelExcluded)),
				humanize.Comma(int64(run.Result.Stats.Unpaired)),
				humanize.Comma(int64(run.Result.Stats.Implausible)),
			)
		}

		return report.Write(out, format, *run.Result, report.TextOptions{WithSeconds: historySeconds})
	})
}

func runHistoryRm(cmd *cobra.Command, args []string) error {
	return withHistory(func(_ *config.Config, mgr *state.Manager) error {
		run, err := mgr.Get(args[0])
		if err != nil {
			return err
		}
		if err := mgr.Delete(run.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ShortID())
		return nil
	})
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if pruneKeep < 0 {
		return fmt.Errorf("--keep must be zero or more")
	}

	return withHistory(func(cfg *config.Config, mgr *state.Manager) error {
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Close()
		bus, err := event.NewBusFromConfig(cfg.Hooks, logger)
		if err != nil {
			return err
		}
		defer bus.Wait(10 * time.Second)

		removed, err := mgr.Prune(pruneKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s run(s), kept the newest %d\n", humanize.Comma(int64(removed)), pruneKeep)

		return bus.Emit(event.NewEvent(event.HistoryPruned, map[string]interface{}{
			"removed": removed,
			"kept":    pruneKeep,
		}))
	})
}
