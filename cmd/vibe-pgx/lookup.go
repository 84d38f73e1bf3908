package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-pgx/internal/annotate"
	"github.com/inodb/vibe-pgx/internal/duckdb"
	"github.com/inodb/vibe-pgx/internal/output"
)

var errNoResultsDB = errors.New("results.db is not configured")

func newLookupCmd() *cobra.Command {
	var (
		gene   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "lookup [flags] <variant_key | --gene SYMBOL>",
		Short: "Look up stored annotations in results.db",
		Long: `Query the annotations stored by earlier annotate runs, either for one
variant key (chr10:94761930:G>A) or for every variant of a gene.

Gene results are ordered by predicted impact, most severe first, and the
table format lists the drugs metabolized by the gene.`,
		Example: `  vibe-pgx lookup chr10:94761930:G>A
  vibe-pgx lookup --gene CYP2C19
  vibe-pgx lookup --gene CYP2D6 -f csv`,
		Args: func(cmd *cobra.Command, args []string) error {
			if gene != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" {
				if _, err := output.ParseFormat(format); err != nil {
					return err
				}
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runLookup(cmd, key, gene, format)
		},
	}

	cmd.Flags().StringVar(&gene, "gene", "", "Gene symbol to search instead of a variant key")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv")

	return cmd
}

func runLookup(cmd *cobra.Command, key, gene, format string) error {
	path := viper.GetString("results.db")
	if path == "" {
		return fmt.Errorf("%w; set it with: vibe-pgx config set results.db <path>", errNoResultsDB)
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := duckdb.Open(path)
	if err != nil {
		return fmt.Errorf("opening results store: %w", err)
	}
	defer store.Close()

	var records []*annotate.Record
	if gene != "" {
		records, err = store.SearchByGene(gene)
		if err != nil {
			return err
		}
		sort.SliceStable(records, func(i, j int) bool {
			return annotate.ImpactRank(records[i].PredictedImpact) > annotate.ImpactRank(records[j].PredictedImpact)
		})
	} else {
		records, err = store.LookupRecords(key)
		if err != nil {
			return err
		}
	}

	if format != "table" {
		f, _ := output.ParseFormat(format)
		return output.WriteRecords(cmd.OutOrStdout(), f, records)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "variant_key\tgene\tconsequence\timpact\tclinical_significance\tcadd_score")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.VariantKey, orDot(r.Gene), r.Consequence, r.PredictedImpact,
			orDot(r.ClinicalSignificance), scoreOrDot(r.CADDScore))
	}
	if gene != "" {
		kb, err := loadKnowledge(logger)
		if err != nil {
			return err
		}
		drugs := "none"
		if d := kb.DrugsForGene(gene); len(d) > 0 {
			drugs = strings.Join(d, ", ")
		}
		fmt.Fprintf(tw, "\ndrugs:\t%s\n", drugs)
	}
	return tw.Flush()
}

func orDot(s *string) string {
	if s == nil || *s == "" {
		return "."
	}
	return *s
}

func scoreOrDot(f *float64) string {
	if f == nil {
		return "."
	}
	return fmt.Sprintf("%.1f", *f)
}
