package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

// Run identifies one annotation of one input file.
type Run struct {
	ID          string
	Input       FileFingerprint
	CreatedAt   time.Time
	RecordCount int
	// Settings describes the configuration the records were produced with.
	// A stored run is only reused under identical settings.
	Settings string
}

// NewRun starts a run for the given input with a fresh random id.
func NewRun(input FileFingerprint) Run {
	return Run{
		ID:        uuid.NewString(),
		Input:     input,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

const recordColumns = `chrom, pos, ref, alt, variant_key, external_id, gene, transcript,
	consequence, clinvar_significance, clinvar_id, gnomad_af, cadd_score,
	phylop_score, phastcons_score, protein_domain, is_drug_metabolizer_gene,
	cyp_family, predicted_impact`

// WriteRecords stores a run and its records in input order using the
// Appender API. The run's RecordCount is taken from len(records). The run row
// is written last, so a failed write leaves no run that FindRun could return.
func (s *Store) WriteRecords(run Run, records []*annotate.Record) error {
	if _, err := uuid.Parse(run.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}

	if err := s.appendRecords(run.ID, records); err != nil {
		s.discardRecords(run.ID)
		return err
	}

	var mtime int64
	if !run.Input.ModTime.IsZero() {
		mtime = run.Input.ModTime.UnixNano()
	}
	if _, err := s.db.Exec(`INSERT INTO runs (run_id, input_path, input_size, input_mtime_ns, created_at, record_count, settings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input.Path, run.Input.Size, mtime, run.CreatedAt, int64(len(records)), run.Settings,
	); err != nil {
		s.discardRecords(run.ID)
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// appendRecords appends records under runID and flushes them.
func (s *Store) appendRecords(runID string, records []*annotate.Record) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "annotated_variants")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for i, r := range records {
		if err := appender.AppendRow(
			runID, int64(i),
			r.Chrom, r.Pos, r.Ref, r.Alt, r.VariantKey,
			nullString(r.ExternalID), nullString(r.Gene), nullString(r.Transcript),
			r.Consequence, nullString(r.ClinicalSignificance), nullString(r.ClinVarID),
			nullFloat(r.AlleleFrequency), nullFloat(r.CADDScore),
			nullFloat(r.PhyloPScore), nullFloat(r.PhastConsScore),
			nullString(r.ProteinDomain), r.IsDrugMetabolizerGene,
			nullString(r.CYPFamily), r.PredictedImpact,
		); err != nil {
			appender.Close()
			return fmt.Errorf("append record %d: %w", i, err)
		}
	}

	if err := appender.Close(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}

// discardRecords removes whatever part of a failed write reached the table.
func (s *Store) discardRecords(runID string) {
	_, _ = s.db.Exec("DELETE FROM annotated_variants WHERE run_id=?", runID)
}

// RunRecords returns the records of one run in input order.
func (s *Store) RunRecords(runID string) ([]*annotate.Record, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+`
		FROM annotated_variants WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// LookupRecords returns every stored annotation of a variant key, oldest
// run first.
func (s *Store) LookupRecords(variantKey string) ([]*annotate.Record, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+`
		FROM annotated_variants v JOIN runs r USING (run_id)
		WHERE v.variant_key=?
		ORDER BY r.created_at, v.run_id, v.seq`, variantKey)
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SearchByGene returns every stored record for a gene symbol.
func (s *Store) SearchByGene(gene string) ([]*annotate.Record, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+`
		FROM annotated_variants v JOIN runs r USING (run_id)
		WHERE v.gene=?
		ORDER BY r.created_at, v.run_id, v.seq`, gene)
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, input_path, input_size, input_mtime_ns, created_at, record_count,
			COALESCE(settings, '')
		FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var mtime, count int64
		if err := rows.Scan(&r.ID, &r.Input.Path, &r.Input.Size, &mtime, &r.CreatedAt, &count, &r.Settings); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if mtime != 0 {
			r.Input.ModTime = time.Unix(0, mtime)
		}
		r.RecordCount = int(count)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the newest run whose input matches fp and that was made
// with the given settings.
func (s *Store) FindRun(fp FileFingerprint, settings string) (Run, bool, error) {
	if !fp.Stable() {
		return Run{}, false, nil
	}
	runs, err := s.Runs()
	if err != nil {
		return Run{}, false, err
	}
	for _, r := range runs {
		if r.Input.Same(fp) && r.Settings == settings {
			return r, true, nil
		}
	}
	return Run{}, false, nil
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(runID string) error {
	if _, err := s.db.Exec("DELETE FROM annotated_variants WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete run records: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM runs WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]*annotate.Record, error) {
	var records []*annotate.Record
	for rows.Next() {
		var r annotate.Record
		var externalID, gene, transcript, sig, clinvarID, domain, cyp sql.NullString
		var af, cadd, phyloP, phastCons sql.NullFloat64

		if err := rows.Scan(
			&r.Chrom, &r.Pos, &r.Ref, &r.Alt, &r.VariantKey,
			&externalID, &gene, &transcript,
			&r.Consequence, &sig, &clinvarID,
			&af, &cadd, &phyloP, &phastCons,
			&domain, &r.IsDrugMetabolizerGene, &cyp, &r.PredictedImpact,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		r.ExternalID = stringOrNil(externalID)
		r.Gene = stringOrNil(gene)
		r.Transcript = stringOrNil(transcript)
		r.ClinicalSignificance = stringOrNil(sig)
		r.ClinVarID = stringOrNil(clinvarID)
		r.AlleleFrequency = floatOrNil(af)
		r.CADDScore = floatOrNil(cadd)
		r.PhyloPScore = floatOrNil(phyloP)
		r.PhastConsScore = floatOrNil(phastCons)
		r.ProteinDomain = stringOrNil(domain)
		r.CYPFamily = stringOrNil(cyp)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func nullString(s *string) driver.Value {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) driver.Value {
	if f == nil {
		return nil
	}
	return *f
}

func stringOrNil(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func floatOrNil(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
