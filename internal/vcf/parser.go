package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// INFO keys carrying gene and transcript hints.
const (
	InfoGene       = "GENE"
	InfoTranscript = "TRANSCRIPT"
)

// Parser reads variants from a VCF stream.
//
// Only the first ALT allele of a multi-allelic record is used. Records whose
// ALT is missing ('.') are skipped.
type Parser struct {
	reader     *bufio.Reader
	lineNumber int
}

// NewParser creates a parser reading from r and consumes the header.
func NewParser(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader skips the VCF meta lines up to and including #CHROM. A stream without a #CHROM
// line cannot be decoded as VCF.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			return nil
		}

		return fmt.Errorf("vcf header: expected #CHROM header line at line %d", p.lineNumber)
	}

	return fmt.Errorf("vcf header: no #CHROM header line found")
}

// Next reads the next variant from the VCF stream.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue // Skip empty lines
		}

		v, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		if v == nil {
			continue // no ALT allele
		}
		return v, nil
	}
}

// parseLine parses a single VCF data line into a Variant.
// Returns nil, nil for a record without an alternate allele.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	alt := FirstAllele(fields[4])
	if alt == "" || alt == "." {
		return nil, nil
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	info := parseInfo(fields[7])
	return &Variant{
		Chrom:      fields[0],
		Pos:        pos,
		ID:         fields[2],
		Ref:        fields[3],
		Alt:        alt,
		Gene:       infoString(info, InfoGene),
		Transcript: infoString(info, InfoTranscript),
		Info:       info,
	}, nil
}

// FirstAllele returns the first allele of a comma-separated ALT column.
func FirstAllele(alt string) string {
	return firstValue(alt)
}

func firstValue(list string) string {
	if i := strings.IndexByte(list, ','); i >= 0 {
		return list[:i]
	}
	return list
}

// parseInfo parses the INFO field into a map.
func parseInfo(info string) map[string]any {
	result := make(map[string]any)
	if info == "." || info == "" {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		} else {
			// Flag-type INFO field
			result[parts[0]] = true
		}
	}

	return result
}

// infoString returns the first value of a string INFO field, or "".
func infoString(info map[string]any, key string) string {
	s, ok := info[key].(string)
	if !ok || s == "." {
		return ""
	}
	return firstValue(s)
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalid
}
