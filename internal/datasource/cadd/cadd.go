// Package cadd provides CADD deleteriousness score lookups backed by DuckDB.
// Scores are loaded from the published per-variant TSV files
// (Chrom, Pos, Ref, Alt, RawScore, PHRED); the PHRED-scaled value is served.
package cadd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// Store provides CADD score lookups backed by DuckDB. It is safe for
// concurrent use.
type Store struct {
	db       *sql.DB
	lookupPS *sql.Stmt
}

// Open opens or creates a DuckDB database for CADD scores at the given path.
// An empty path opens an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s.lookupPS, err = db.Prepare(
		"SELECT phred FROM cadd_scores WHERE chrom=? AND pos=? AND ref=? AND alt=? LIMIT 1",
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cadd_scores (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		raw_score DOUBLE,
		phred DOUBLE
	)`); err != nil {
		return err
	}
	// Index for fast point lookups
	s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_cadd_lookup ON cadd_scores (chrom, pos, ref, alt)`)
	return nil
}

// Loaded returns true if the score table has data.
func (s *Store) Loaded() bool {
	n, err := s.Count()
	return err == nil && n > 0
}

// Count returns the number of rows in the score table.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cadd_scores").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cadd rows: %w", err)
	}
	return count, nil
}

// Load bulk-loads scores from a (optionally gzipped) CADD TSV using DuckDB's
// read_csv, replacing any existing rows. Lines starting with '#' are skipped:
//
//	## CADD GRCh38-v1.7 (c) University of Washington ...
//	#Chrom  Pos  Ref  Alt  RawScore  PHRED
//
// Chromosome names are stored without a "chr" prefix.
func (s *Store) Load(tsvPath string) error {
	if _, err := os.Stat(tsvPath); err != nil {
		return fmt.Errorf("loading CADD scores: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cadd_scores`); err != nil {
		return fmt.Errorf("clear cadd scores: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO cadd_scores
		SELECT regexp_replace(column0, '^chr', ''), column1, column2, column3,
			CAST(column4 AS DOUBLE), CAST(column5 AS DOUBLE)
		FROM read_csv('%s', delim='\t', header=false, comment='#', auto_detect=false,
			columns={
				'column0': 'VARCHAR',
				'column1': 'BIGINT',
				'column2': 'VARCHAR',
				'column3': 'VARCHAR',
				'column4': 'VARCHAR',
				'column5': 'VARCHAR'
			})`, strings.ReplaceAll(tsvPath, "'", "''"))

	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("loading CADD scores: %w", err)
	}
	return tx.Commit()
}

// Lookup returns the PHRED-scaled CADD score for a variant.
func (s *Store) Lookup(ctx context.Context, chrom string, pos int64, ref, alt string) (float64, bool) {
	var phred sql.NullFloat64
	err := s.lookupPS.QueryRowContext(ctx, normalizeChrom(chrom), pos, ref, alt).Scan(&phred)
	if err != nil || !phred.Valid {
		return 0, false
	}
	return phred.Float64, true
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.lookupPS.Close()
	return s.db.Close()
}

func normalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}
