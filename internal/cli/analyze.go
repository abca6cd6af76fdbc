package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stxkxs/ttr/internal/aggregate"
	"github.com/stxkxs/ttr/internal/loader"
	"github.com/stxkxs/ttr/internal/report"
)

var (
	analyzeFormat    string
	analyzeOutput    string
	analyzeSeconds   bool
	analyzeWatch     bool
	analyzeNoHistory bool
	analyzeColor     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Report Login to Ready time per agent",
	Long: `Analyze an agent event log and print the Login to Ready report.

The file defaults to input.path from ttr.yaml (agent-details.csv).

Examples:
  ttr analyze                                # ./agent-details.csv, text table
  ttr analyze exports/today.csv -f csv -o report.csv
  ttr analyze today.csv --format json --seconds
  ttr analyze today.csv --watch              # re-run on every save`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "", "output format: text, json, csv (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeSeconds, "seconds", false, "include the raw seconds column")
	analyzeCmd.Flags().BoolVarP(&analyzeWatch, "watch", "w", false, "re-run whenever the file changes")
	analyzeCmd.Flags().BoolVar(&analyzeNoHistory, "no-history", false, "do not record this run in history")
	analyzeCmd.Flags().BoolVar(&analyzeColor, "color", false, "style text output headings")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Input.Path
	if len(args) > 0 {
		path = args[0]
	}

	formatName := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		formatName = analyzeFormat
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	opts := report.TextOptions{
		WithSeconds: cfg.Output.IncludeSeconds || analyzeSeconds,
		Color:       (cfg.Output.Color || analyzeColor) && analyzeOutput == "",
	}

	a, err := newApp(cfg, !analyzeNoHistory)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzeOnce := func() error {
		out, err := a.runner.RunFile(ctx, path)
		if err != nil {
			return err
		}
		return writeReport(cmd.OutOrStdout(), format, out.Result, opts)
	}

	if !analyzeWatch {
		return analyzeOnce()
	}

	if err := analyzeOnce(); err != nil {
		printError(err)
	}
	fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", path)))

	return loader.Watch(ctx, path, loader.DefaultDebounce, func() {
		fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("\n%s changed at %s", path, time.Now().Format("15:04:05"))))
		if err := analyzeOnce(); err != nil {
			printError(err)
		}
	})
}

// writeReport renders res to --output when set, otherwise to stdout.
func writeReport(stdout io.Writer, format report.Format, res aggregate.Result, opts report.TextOptions) error {
	if analyzeOutput == "" {
		return report.Write(stdout, format, res, opts)
	}

	f, err := os.Create(analyzeOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := report.Write(f, format, res, opts); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s (%d agents)\n", analyzeOutput, len(res.Rows))
	return nil
}
