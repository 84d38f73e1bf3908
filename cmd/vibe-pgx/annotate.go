package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-pgx/internal/annotate"
	"github.com/inodb/vibe-pgx/internal/duckdb"
	"github.com/inodb/vibe-pgx/internal/output"
	"github.com/inodb/vibe-pgx/internal/variantfile"
)

// inputFlags are shared by every command that reads a variant file.
type inputFlags struct {
	format  string
	workers int
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "input-format", "", "Input format: vcf, csv (auto-detected if not specified)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Annotation workers (0 = annotate.workers or NumCPU, 1 = sequential)")
}

func (f *inputFlags) options(cmd *cobra.Command) (variantfile.Options, error) {
	format, err := variantfile.ParseFormat(f.format)
	if err != nil {
		return variantfile.Options{}, err
	}
	workers := f.workers
	if !cmd.Flags().Changed("workers") {
		workers = viper.GetInt("annotate.workers")
	}
	return variantfile.Options{Format: format, Workers: workers}, nil
}

// annotateInput parses and annotates one input file with a configured pipeline.
func annotateInput(cmd *cobra.Command, p *pipeline, path string, in inputFlags) ([]*annotate.Record, error) {
	opts, err := in.options(cmd)
	if err != nil {
		return nil, err
	}
	records, err := variantfile.Parse(cmd.Context(), path, p.annotator, opts)
	if err != nil {
		return nil, err
	}
	p.logger.Info("annotated variants", zap.String("input", path), zap.Int("records", len(records)))
	return records, nil
}

func newAnnotateCmd() *cobra.Command {
	var (
		in         inputFlags
		format     string
		outputFile string
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "annotate [flags] <input-file>",
		Short: "Annotate variants in a VCF or CSV/TSV file",
		Long: `Annotate every variant with gene, consequence, clinical significance,
population frequency, deleteriousness, conservation and predicted impact.

The input is a VCF (optionally gzipped) or a delimited table with columns
chrom, pos, ref, alt and optional gene and transcript. Use '-' for stdin.

When results.db is configured each run is stored there, and a file that is
unchanged since a stored run with the same settings is served from the store.
--refresh re-annotates and replaces that stored run.`,
		Example: `  vibe-pgx annotate patient.vcf
  vibe-pgx annotate --format csv -o annotated.csv variants.tsv
  cat patient.vcf | vibe-pgx annotate --input-format vcf -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			return runAnnotate(cmd, args[0], in, outFormat, outputFile, refresh)
		},
	}

	in.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, csv")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-annotate even when results.db holds a run for this file")

	return cmd
}

func runAnnotate(cmd *cobra.Command, inputPath string, in inputFlags, outFormat output.Format, outputFile string, refresh bool) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	var store *duckdb.Store
	if path := viper.GetString("results.db"); path != "" {
		store, err = duckdb.Open(path)
		if err != nil {
			return fmt.Errorf("opening results store: %w", err)
		}
		defer store.Close()
	}

	records, err := annotateOrReuse(cmd, p, store, inputPath, in, refresh)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return output.WriteRecords(out, outFormat, records)
}

// annotateOrReuse annotates inputPath, storing the run when a results store
// is open. A stored run for an unchanged file is returned instead.
func annotateOrReuse(cmd *cobra.Command, p *pipeline, store *duckdb.Store, inputPath string, in inputFlags, refresh bool) ([]*annotate.Record, error) {
	if store == nil {
		return annotateInput(cmd, p, inputPath, in)
	}

	fp, err := duckdb.StatFile(inputPath)
	if err != nil {
		return nil, &variantfile.IOError{Path: inputPath, Err: err}
	}

	settings, err := annotationSettings(in)
	if err != nil {
		return nil, err
	}

	prev, found, err := store.FindRun(fp, settings)
	if err != nil {
		return nil, err
	}
	if found && !refresh {
		p.logger.Info("using stored run",
			zap.String("run_id", prev.ID),
			zap.Int("records", prev.RecordCount),
			zap.String("settings", prev.Settings))
		return store.RunRecords(prev.ID)
	}

	records, err := annotateInput(cmd, p, inputPath, in)
	if err != nil {
		return nil, err
	}

	run := duckdb.NewRun(fp)
	run.Settings = settings
	if err := store.WriteRecords(run, records); err != nil {
		return nil, fmt.Errorf("storing run: %w", err)
	}
	p.logger.Info("stored run",
		zap.String("run_id", run.ID),
		zap.String("db", store.Path()),
		zap.String("settings", settings))

	// A refreshed run replaces the one it supersedes.
	if found {
		if err := store.DeleteRun(prev.ID); err != nil {
			return nil, fmt.Errorf("replacing run %s: %w", prev.ID, err)
		}
		p.logger.Info("deleted superseded run", zap.String("run_id", prev.ID))
	}
	return records, nil
}

// annotationSettings describes everything besides the input file that
// changes the records produced for it.
func annotationSettings(in inputFlags) (string, error) {
	format, err := variantfile.ParseFormat(in.format)
	if err != nil {
		return "", err
	}
	if format == variantfile.FormatAuto {
		format = "auto"
	}

	clinvarSetting := "off"
	if viper.GetBool("clinvar.enabled") {
		clinvarSetting = viper.GetString("clinvar.url") + "#" + viper.GetString("clinvar.position_field")
	}
	gnomadSetting := "off"
	if viper.GetBool("gnomad.enabled") {
		gnomadSetting = viper.GetString("gnomad.url") + "#" + viper.GetString("gnomad.dataset")
	}

	return strings.Join([]string{
		"input_format=" + string(format),
		"clinvar=" + clinvarSetting,
		"gnomad=" + gnomadSetting,
		"knowledge.metabolizer_genes=" + viper.GetString("knowledge.metabolizer_genes"),
		"knowledge.clinical_fallback=" + viper.GetString("knowledge.clinical_fallback"),
		"knowledge.scores=" + viper.GetString("knowledge.scores"),
		"scores.db=" + viper.GetString("scores.db"),
	}, ";"), nil
}
