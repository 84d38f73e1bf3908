package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/datasource/cadd"
)

func newLoadScoresCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "load-scores [flags] <scores.tsv>",
		Short: "Load deleteriousness scores into a DuckDB store",
		Long: `Bulk load a CADD-style TSV (chrom, pos, ref, alt, raw score, PHRED) into a
DuckDB file. Existing scores in the file are replaced. Point scores.db at the
file to consult it during annotation.`,
		Example: `  vibe-pgx load-scores --db ~/.vibe-pgx/scores.duckdb whole_genome_SNVs.tsv.gz
  vibe-pgx config set scores.db ~/.vibe-pgx/scores.duckdb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("db") {
				dbPath = viper.GetString("scores.db")
			}
			if dbPath == "" {
				return fmt.Errorf("no score database: use --db or set scores.db")
			}
			return runLoadScores(cmd, dbPath, args[0])
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB file to load into (default: scores.db)")

	return cmd
}

func runLoadScores(cmd *cobra.Command, dbPath, tsvPath string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := cadd.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("loading scores", zap.String("tsv", tsvPath), zap.String("db", dbPath))
	if err := store.Load(tsvPath); err != nil {
		return err
	}
	n, err := store.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d scores into %s\n", n, dbPath)
	return nil
}
