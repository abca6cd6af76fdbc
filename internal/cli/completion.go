package cli

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for ttr.

To load completions:

Bash:
  $ source <(ttr completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ ttr completion bash > /etc/bash_completion.d/ttr
  # macOS:
  $ ttr completion bash > $(brew --prefix)/etc/bash_completion.d/ttr

Zsh:
  $ source <(ttr completion zsh)
  # To load completions for each session, execute once:
  $ ttr completion zsh > "${fpath[1]}/_ttr"

Fish:
  $ ttr completion fish | source
  # To load completions for each session, execute once:
  $ ttr completion fish > ~/.config/fish/completions/ttr.fish

PowerShell:
  PS> ttr completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}
