// Package output serializes annotated records and feature vectors.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/inodb/vibe-pgx/internal/annotate"
)

// Format is a record export encoding.
type Format string

const (
	FormatCSV  Format = "csv"  // one row per record with a header row
	FormatJSON Format = "json" // one array of field-keyed objects
)

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use csv or json)", s)
}

// WriteRecords writes records to w in the given format.
func WriteRecords(w io.Writer, f Format, records []*annotate.Record) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	}
	return fmt.Errorf("unsupported output format %q", f)
}

// WriteJSON writes records as an indented JSON array. Absent optional
// fields are written as null.
func WriteJSON(w io.Writer, records []*annotate.Record) error {
	if records == nil {
		records = []*annotate.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// ReadJSON reads records written by WriteJSON.
func ReadJSON(r io.Reader) ([]*annotate.Record, error) {
	var records []*annotate.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

// csvRow is the flat row form of a record. Absent optional fields are empty.
type csvRow struct {
	Chrom                 string `csv:"chrom"`
	Pos                   string `csv:"pos"`
	Ref                   string `csv:"ref"`
	Alt                   string `csv:"alt"`
	VariantKey            string `csv:"variant_key"`
	ExternalID            string `csv:"external_id"`
	Gene                  string `csv:"gene"`
	Transcript            string `csv:"transcript"`
	Consequence           string `csv:"consequence"`
	ClinicalSignificance  string `csv:"clinvar_significance"`
	ClinVarID             string `csv:"clinvar_id"`
	AlleleFrequency       string `csv:"gnomad_af"`
	CADDScore             string `csv:"cadd_score"`
	PhyloPScore           string `csv:"phylop_score"`
	PhastConsScore        string `csv:"phastcons_score"`
	ProteinDomain         string `csv:"protein_domain"`
	IsDrugMetabolizerGene string `csv:"is_drug_metabolizer_gene"`
	CYPFamily             string `csv:"cyp_family"`
	PredictedImpact       string `csv:"predicted_impact"`
}

func newCSVRow(r *annotate.Record) csvRow {
	return csvRow{
		Chrom:                 r.Chrom,
		Pos:                   strconv.FormatInt(r.Pos, 10),
		Ref:                   r.Ref,
		Alt:                   r.Alt,
		VariantKey:            r.VariantKey,
		ExternalID:            str(r.ExternalID),
		Gene:                  str(r.Gene),
		Transcript:            str(r.Transcript),
		Consequence:           r.Consequence,
		ClinicalSignificance:  str(r.ClinicalSignificance),
		ClinVarID:             str(r.ClinVarID),
		AlleleFrequency:       num(r.AlleleFrequency),
		CADDScore:             num(r.CADDScore),
		PhyloPScore:           num(r.PhyloPScore),
		PhastConsScore:        num(r.PhastConsScore),
		ProteinDomain:         str(r.ProteinDomain),
		IsDrugMetabolizerGene: strconv.FormatBool(r.IsDrugMetabolizerGene),
		CYPFamily:             str(r.CYPFamily),
		PredictedImpact:       r.PredictedImpact,
	}
}

// WriteCSV writes records as comma-separated rows with a header naming
// every field. The header is written even when there are no records.
func WriteCSV(w io.Writer, records []*annotate.Record) error {
	rows := make([]csvRow, len(records))
	for i, r := range records {
		rows[i] = newCSVRow(r)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', -1, 64)
}
