package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stxkxs/ttr/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter ttr.yaml",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing ttr.yaml")
}

const starterConfig = `# ttr configuration
name: %q

input:
  path: agent-details.csv
  delimiter: ","
  # comment: "#"
  trim_space: true

output:
  format: text          # text, json, csv
  include_seconds: false
  color: false

logging:
  level: warn           # debug, info, warn, error
  format: text          # text, json
  # file: .ttr/ttr.log

history:
  driver: sqlite        # sqlite, memory
  path: .ttr/history.db
  keep: 100             # 0 keeps every run

server:
  host: localhost
  port: 8080
  max_upload_mb: 32

hooks:
  enabled: false
  hooks:
    - name: audit
      type: log
      events: [report.completed, report.failed]
      level: info
    # - name: notify
    #   type: webhook
    #   url: ${TTR_WEBHOOK_URL}
    #   events: [report.completed]
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(filepath.Join(dir, ".ttr"), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	name := filepath.Base(mustAbs(dir))
	if err := os.WriteFile(path, []byte(fmt.Sprintf(starterConfig, name)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Next: ttr analyze agent-details.csv"))
	return nil
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
