package knowledge

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Paths points at optional TSV files that replace the built-in tables.
// An empty path keeps the built-in table.
type Paths struct {
	MetabolizerGenes string
	ClinicalFallback string
	Scores           string
}

// Load builds a Knowledge from the built-in tables, replacing each table
// whose path is set.
func Load(p Paths) (*Knowledge, error) {
	genes := builtinGenes
	clinical := builtinClinical
	scores := builtinScores

	var err error
	if p.MetabolizerGenes != "" {
		if genes, err = LoadMetabolizerGenes(p.MetabolizerGenes); err != nil {
			return nil, err
		}
	}
	if p.ClinicalFallback != "" {
		if clinical, err = LoadClinicalFallback(p.ClinicalFallback); err != nil {
			return nil, err
		}
	}
	if p.Scores != "" {
		if scores, err = LoadScores(p.Scores); err != nil {
			return nil, err
		}
	}
	return New(genes, clinical, scores), nil
}

// LoadMetabolizerGenes loads a TSV with columns "gene", "cyp_family" and
// "drugs" (comma-separated).
func LoadMetabolizerGenes(path string) ([]MetabolizerGene, error) {
	var genes []MetabolizerGene
	err := readTSV(path, "metabolizer genes", []string{"gene", "cyp_family", "drugs"}, func(line int, f []string) error {
		if f[0] == "" {
			return nil
		}
		var drugs []string
		for _, d := range strings.Split(f[2], ",") {
			if d = strings.TrimSpace(d); d != "" {
				drugs = append(drugs, d)
			}
		}
		genes = append(genes, MetabolizerGene{Symbol: f[0], CYPFamily: f[1], Drugs: drugs})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return genes, nil
}

// LoadClinicalFallback loads a TSV with columns "variant_key",
// "significance" and "clinvar_id".
func LoadClinicalFallback(path string) (map[string]ClinicalEntry, error) {
	entries := make(map[string]ClinicalEntry)
	err := readTSV(path, "clinical fallback", []string{"variant_key", "significance", "clinvar_id"}, func(line int, f []string) error {
		if f[0] == "" {
			return nil
		}
		entries[f[0]] = ClinicalEntry{Significance: f[1], ID: f[2]}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadScores loads a TSV with columns "variant_key" and "score".
// Scores must be non-negative.
func LoadScores(path string) (map[string]float64, error) {
	scores := make(map[string]float64)
	err := readTSV(path, "scores", []string{"variant_key", "score"}, func(line int, f []string) error {
		if f[0] == "" {
			return nil
		}
		s, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid score %q", line, f[1])
		}
		if s < 0 {
			return fmt.Errorf("line %d: negative score %q", line, f[1])
		}
		scores[f[0]] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// readTSV reads a headered TSV and calls fn with the requested columns of
// every data row, in the order given by columns.
func readTSV(path, what string, columns []string, fn func(line int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", what, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	// Read header to find column indices
	if !scanner.Scan() {
		return fmt.Errorf("%s: empty file", what)
	}
	header := strings.Split(strings.TrimPrefix(scanner.Text(), "#"), "\t")

	idx := make([]int, len(columns))
	for i, want := range columns {
		idx[i] = -1
		for j, col := range header {
			if strings.TrimSpace(col) == want {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return fmt.Errorf("%s: missing '%s' column", what, want)
		}
	}

	line := 1
	picked := make([]string, len(columns))
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		for i, j := range idx {
			picked[i] = ""
			if j < len(fields) {
				picked[i] = strings.TrimSpace(fields[j])
			}
		}
		if err := fn(line, picked); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", what, err)
	}
	return nil
}
