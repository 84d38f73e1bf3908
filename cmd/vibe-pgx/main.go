// Package main provides the vibe-pgx command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-pgx/internal/variantfile"
	"github.com/inodb/vibe-pgx/internal/vcf"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const configName = ".vibe-pgx"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		return ExitError
	}
	return ExitSuccess
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "Check that the file path is correct"
	case errors.Is(err, vcf.ErrInvalid):
		return "Fix the reported row or use --input-format to choose vcf or csv"
	case errors.Is(err, variantfile.ErrIO):
		return "Check that the file is a readable VCF, CSV or TSV (optionally gzipped)"
	case errors.Is(err, errNoResultsDB):
		return "Annotate with results.db set to store runs that lookup can query"
	}
	return ""
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "vibe-pgx",
		Short: "Pharmacogenomic variant annotation",
		Long: `vibe-pgx annotates genetic variants with pharmacogenomic knowledge,
aggregates them into patient feature vectors and scores drug response and
adverse drug reaction risk.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			if verbose {
				viper.Set("log.level", "debug")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.vibe-pgx.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newAnnotateCmd())
	root.AddCommand(newFeaturesCmd())
	root.AddCommand(newPredictCmd())
	root.AddCommand(newLookupCmd())
	root.AddCommand(newLoadScoresCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// initConfig wires defaults, the config file and VIBE_PGX_ environment
// variables into viper.
func initConfig(cfgFile string) error {
	setDefaults()

	viper.SetEnvPrefix("VIBE_PGX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile == "" && errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}

// newLogger builds the stderr logger from log.level.
func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
