package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stxkxs/ttr/internal/config"
	"github.com/stxkxs/ttr/internal/event"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and modifying ttr.yaml.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a value in ttr.yaml using dot notation, for example:

  ttr config set output.format csv
  ttr config set history.keep 50`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}
	return config.FileName
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, heading("Current Configuration:"))
	fmt.Fprintln(w, string(out))

	if _, err := os.Stat(configPath()); err == nil {
		fmt.Fprintf(w, "Config file: %s\n", configPath())
	} else {
		fmt.Fprintln(w, dimStyle.Render("No config file found; showing defaults."))
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]
	path := configPath()

	cfgMap := map[string]interface{}{}
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, &cfgMap); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if cfgMap == nil {
			cfgMap = map[string]interface{}{}
		}
	case os.IsNotExist(err):
		// set creates the file
	default:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := setNestedValue(cfgMap, key, parseScalar(value)); err != nil {
		return err
	}

	out, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Refuse to write a file that would no longer load.
	if err := validateYAML(out); err != nil {
		return err
	}

	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configPath()
	if err := checkConfigFile(path); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not found, defaults are valid\n", path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", path)
	return nil
}

// validateYAML checks content the way config.LoadFile would.
func validateYAML(content []byte) error {
	f, err := os.CreateTemp("", "ttr-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return checkConfigFile(f.Name())
}

// checkConfigFile loads path and validates the hook subscriptions too.
func checkConfigFile(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	return event.ValidateHooks(cfg.Hooks)
}

// parseScalar keeps numbers and booleans typed in the written YAML.
func parseScalar(v string) interface{} {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}

func setNestedValue(m map[string]interface{}, key string, value interface{}) error {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key: %q", key)
		}
	}

	current := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := current[p]
		if !ok {
			child := map[string]interface{}{}
			current[p] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a section", key, p)
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}
