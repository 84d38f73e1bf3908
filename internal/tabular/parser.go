// Package tabular parses delimited variant tables with the columns
// chrom, pos, ref, alt and optionally gene and transcript.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-pgx/internal/vcf"
)

// Column names. Header matching is case-insensitive.
const (
	ColChrom      = "chrom"
	ColPos        = "pos"
	ColRef        = "ref"
	ColAlt        = "alt"
	ColGene       = "gene"
	ColTranscript = "transcript"
)

// RequiredColumns must all be present in the header.
var RequiredColumns = []string{ColChrom, ColPos, ColRef, ColAlt}

// ColumnIndices holds the indices of the known columns, -1 if absent.
type ColumnIndices struct {
	Chrom      int
	Pos        int
	Ref        int
	Alt        int
	Gene       int
	Transcript int
}

// Parser reads variants from a comma- or tab-delimited table.
type Parser struct {
	reader     *csv.Reader
	columns    ColumnIndices
	lineNumber int
}

// NewParser creates a parser reading from r. The delimiter is tab when the
// header line contains a tab, comma otherwise.
func NewParser(r io.Reader) (*Parser, error) {
	br := bufio.NewReader(r)
	delim, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	p := &Parser{reader: cr}
	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// sniffDelimiter peeks at the first non-comment line.
func sniffDelimiter(br *bufio.Reader) (rune, error) {
	buf, err := br.Peek(64 * 1024)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, fmt.Errorf("read table header: %w", err)
	}
	for _, line := range bytes.Split(buf, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if bytes.IndexByte(line, '\t') >= 0 {
			return '\t', nil
		}
		return ',', nil
	}
	return ',', nil
}

// parseHeader reads the header row and locates the known columns.
func (p *Parser) parseHeader() error {
	header, err := p.reader.Read()
	if err == io.EOF {
		return &ParseError{Line: 1, Message: "no header line found"}
	}
	if err != nil {
		return fmt.Errorf("read table header: %w", err)
	}
	p.lineNumber, _ = p.reader.FieldPos(0)

	p.columns = ColumnIndices{Chrom: -1, Pos: -1, Ref: -1, Alt: -1, Gene: -1, Transcript: -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case ColChrom:
			p.columns.Chrom = i
		case ColPos:
			p.columns.Pos = i
		case ColRef:
			p.columns.Ref = i
		case ColAlt:
			p.columns.Alt = i
		case ColGene:
			p.columns.Gene = i
		case ColTranscript:
			p.columns.Transcript = i
		}
	}

	for _, c := range []struct {
		name string
		idx  int
	}{
		{ColChrom, p.columns.Chrom},
		{ColPos, p.columns.Pos},
		{ColRef, p.columns.Ref},
		{ColAlt, p.columns.Alt},
	} {
		if c.idx < 0 {
			return &ParseError{Line: p.lineNumber, Column: c.name, Message: "missing required column"}
		}
	}
	return nil
}

// Next reads the next variant.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*vcf.Variant, error) {
	for {
		fields, err := p.reader.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &ParseError{Line: perr.Line, Message: perr.Err.Error()}
			}
			return nil, fmt.Errorf("read table row: %w", err)
		}
		p.lineNumber, _ = p.reader.FieldPos(0)

		if isBlank(fields) {
			continue
		}
		return p.parseRow(fields)
	}
}

func (p *Parser) parseRow(fields []string) (*vcf.Variant, error) {
	required := func(name string, idx int) (string, error) {
		v := field(fields, idx)
		if v == "" {
			return "", &ParseError{Line: p.lineNumber, Column: name, Message: "missing value"}
		}
		return v, nil
	}

	chrom, err := required(ColChrom, p.columns.Chrom)
	if err != nil {
		return nil, err
	}
	posStr, err := required(ColPos, p.columns.Pos)
	if err != nil {
		return nil, err
	}
	ref, err := required(ColRef, p.columns.Ref)
	if err != nil {
		return nil, err
	}
	alt, err := required(ColAlt, p.columns.Alt)
	if err != nil {
		return nil, err
	}

	pos, err := strconv.ParseInt(posStr, 10, 64)
	if err != nil {
		return nil, &ParseError{Line: p.lineNumber, Column: ColPos, Message: fmt.Sprintf("invalid position: %s", posStr)}
	}

	return &vcf.Variant{
		Chrom:      chrom,
		Pos:        pos,
		ID:         ".",
		Ref:        ref,
		Alt:        alt,
		Gene:       optional(fields, p.columns.Gene),
		Transcript: optional(fields, p.columns.Transcript),
	}, nil
}

// LineNumber returns the line of the last row read.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func optional(fields []string, idx int) string {
	v := field(fields, idx)
	if v == "." {
		return ""
	}
	return v
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ParseError represents a row-level error in a variant table.
type ParseError struct {
	Line    int
	Column  string // offending column, empty if not column-specific
	Message string
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("table parse error at line %d, column %q: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("table parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return vcf.ErrInvalid
}
