package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quillworks/taskboard/internal/config"
	"github.com/quillworks/taskboard/internal/storage/factory"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Inspect configuration settings",
	Long: `Settings are read from flags, then environment variables, then taskboard.yaml
(in the working directory or $XDG_CONFIG_HOME/taskboard), then defaults.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML (secrets masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		effective := config.Effective()
		if jsonOutput {
			return outputJSON(w, effective)
		}
		if path := config.ConfigFileUsed(); path != "" && !quietFlag {
			fmt.Fprintf(w, "# loaded from %s\n", path)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(effective); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one resolved setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		def := config.LookupKey(key)
		if def == nil {
			return fmt.Errorf("unknown key %q (see 'taskboard config keys')", key)
		}
		value := config.GetString(key)
		if def.Secret && value != "" {
			value = config.Redacted
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"key": key, "value": value})
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every supported setting with its environment variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := make([]config.Key, len(config.Keys))
		copy(keys, config.Keys)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })

		w := cmd.OutOrStdout()
		if jsonOutput {
			type keyInfo struct {
				Key         string   `json:"key"`
				Description string   `json:"description"`
				EnvVars     []string `json:"env"`
				Secret      bool     `json:"secret,omitempty"`
			}
			out := make([]keyInfo, 0, len(keys))
			for _, k := range keys {
				out = append(out, keyInfo{k.Key, k.Description, k.EnvVars, k.Secret})
			}
			return outputJSON(w, out)
		}
		for _, k := range keys {
			fmt.Fprintf(w, "%-24s %s\n", k.Key, k.Description)
			if len(k.EnvVars) > 0 {
				fmt.Fprintf(w, "%-24s env: %s\n", "", strings.Join(k.EnvVars, ", "))
			}
		}
		return nil
	},
}

var backendsCmd = &cobra.Command{
	Use:     "backends",
	GroupID: "setup",
	Short:   "List the available storage backends",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), factory.Backends())
		}
		for _, name := range factory.Backends() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configKeysCmd)
	rootCmd.AddCommand(configCmd, backendsCmd)
}
