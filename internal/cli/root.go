package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ttrErrors "github.com/stxkxs/ttr/internal/errors"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ttr",
	Short: "Agent Login to Ready time reporting",
	Long: `ttr - how long agents take from first Login to first Ready.

Reads a delimited event log with AGENT, TIME and STATE columns, pairs each
agent's earliest Login with their earliest Ready, and reports the interval
per agent along with mean, minimum, maximum and median.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error with its hint.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
	if hint := ttrErrors.Suggestion(err); hint != "" {
		fmt.Fprintln(os.Stderr, hintStyle.Render("Hint:"), hint)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ttr.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("ttr")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TTR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
