package cli

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/stxkxs/ttr/internal/aggregate"
	"github.com/stxkxs/ttr/internal/config"
	ttrErrors "github.com/stxkxs/ttr/internal/errors"
	"github.com/stxkxs/ttr/internal/event"
	"github.com/stxkxs/ttr/internal/loader"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, input and history",
	Long:  "Validate that the configuration loads, the default input file parses, and the history store opens.",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "ttr doctor - checking your setup")
	fmt.Fprintln(out)
	failed := 0

	ok := func(label, detail string) {
		fmt.Fprintf(out, "  %-10s %s ✓\n", label+":", detail)
	}
	fail := func(label string, err error) {
		failed++
		fmt.Fprintf(out, "  %-10s FAILED ✗\n", label+":")
		fmt.Fprintf(out, "    → %v\n", err)
		if hint := ttrErrors.Suggestion(err); hint != "" {
			fmt.Fprintf(out, "    → %s\n", hint)
		}
	}

	ok("Platform", fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH))

	cfg, err := loadConfig()
	if err != nil {
		fail("Config", err)
		fmt.Fprintln(out, "\nFix the configuration first; remaining checks need it.")
		return fmt.Errorf("%d check(s) failed", failed)
	}
	ok("Config", fmt.Sprintf("%s (%s)", cfg.Name, configPath()))

	if records, err := loader.LoadFile(cfg.Input.Path, loaderOptions(cfg.Input)); err != nil {
		fail("Input", err)
	} else {
		res := aggregate.Analyze(records)
		ok("Input", fmt.Sprintf("%s, %s records, %d reportable agents",
			cfg.Input.Path, humanize.Comma(int64(len(records))), len(res.Rows)))
	}

	if cfg.HistoryEnabled() {
		if mgr, err := openHistory(cfg); err != nil {
			fail("History", err)
		} else {
			runs, err := mgr.List(0)
			mgr.Close()
			if err != nil {
				fail("History", err)
			} else {
				ok("History", fmt.Sprintf("%s at %s, %d runs", cfg.History.Driver, cfg.History.Path, len(runs)))
			}
		}
	} else {
		ok("History", "disabled")
	}

	if cfg.Hooks.Enabled {
		logger, _ := newLogger(cfg)
		if _, err := event.NewBusFromConfig(cfg.Hooks, logger); err != nil {
			fail("Hooks", err)
		} else if err := checkShell(cfg.Hooks.Hooks); err != nil {
			fail("Hooks", err)
		} else {
			ok("Hooks", fmt.Sprintf("%d configured", len(cfg.Hooks.Hooks)))
		}
		if logger != nil {
			logger.Close()
		}
	}

	fmt.Fprintln(out)
	if failed > 0 {
		fmt.Fprintln(out, "Some checks failed. See above for details.")
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Fprintln(out, "All checks passed!")
	return nil
}

func checkShell(hooks []config.HookConfig) error {
	for _, h := range hooks {
		if h.Type != "shell" {
			continue
		}
		if _, err := exec.LookPath("sh"); err != nil {
			return fmt.Errorf("hook %s needs sh: %w", h.Name, err)
		}
	}
	return nil
}
