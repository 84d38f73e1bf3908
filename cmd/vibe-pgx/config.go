package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-pgx/internal/annotate"
	"github.com/inodb/vibe-pgx/internal/datasource/clinvar"
	"github.com/inodb/vibe-pgx/internal/datasource/gnomad"
	"github.com/inodb/vibe-pgx/internal/features"
)

// setDefaults registers every known configuration key.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("annotate.workers", 0)
	viper.SetDefault("annotate.lookup_timeout", annotate.DefaultLookupTimeout)

	viper.SetDefault("gnomad.enabled", true)
	viper.SetDefault("gnomad.url", gnomad.DefaultURL)
	viper.SetDefault("gnomad.dataset", gnomad.DefaultDataset)
	viper.SetDefault("gnomad.timeout", gnomad.DefaultTimeout)
	viper.SetDefault("gnomad.rate_limit", gnomad.DefaultRateLimit)
	viper.SetDefault("gnomad.cache_size", gnomad.DefaultCacheSize)

	viper.SetDefault("clinvar.enabled", false)
	viper.SetDefault("clinvar.url", clinvar.DefaultURL)
	viper.SetDefault("clinvar.email", "")
	viper.SetDefault("clinvar.api_key", "")
	viper.SetDefault("clinvar.position_field", clinvar.DefaultPositionField)
	viper.SetDefault("clinvar.timeout", clinvar.DefaultTimeout)
	viper.SetDefault("clinvar.rate_limit", clinvar.DefaultRateLimit)

	viper.SetDefault("knowledge.metabolizer_genes", "")
	viper.SetDefault("knowledge.clinical_fallback", "")
	viper.SetDefault("knowledge.scores", "")

	viper.SetDefault("scores.db", "")
	viper.SetDefault("results.db", "")
	viper.SetDefault("features.conservation", string(features.ConservationPlaceholder))
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-pgx configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-pgx.yaml.",
		Example: `  vibe-pgx config                           # show all config
  vibe-pgx config set clinvar.enabled true   # query ClinVar before the fallback table
  vibe-pgx config get gnomad.dataset         # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	if !knownKey(key) {
		return fmt.Errorf("unknown config key %q (known: %v)", key, knownKeys())
	}

	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		viper.Set(key, value)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	if !viper.IsSet(key) {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), viper.Get(key))
	return nil
}

func knownKey(key string) bool {
	for _, k := range viper.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func knownKeys() []string {
	keys := viper.AllKeys()
	sort.Strings(keys)
	return keys
}
