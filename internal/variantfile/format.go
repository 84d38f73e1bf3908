// Package variantfile reads variant-call and tabular variant files and
// annotates every row in file order.
package variantfile

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is an input file format.
type Format string

const (
	FormatAuto    Format = ""
	FormatVCF     Format = "vcf"
	FormatTabular Format = "csv"
)

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "vcf":
		return FormatVCF, nil
	case "csv", "tsv", "tabular":
		return FormatTabular, nil
	}
	return FormatAuto, fmt.Errorf("unknown input format %q (use vcf or csv)", s)
}

// DetectFormat detects the input format from the file extension, falling
// back to the first bytes of the decompressed content.
func DetectFormat(path string, head []byte) Format {
	lowerPath := strings.ToLower(path)
	lowerPath = strings.TrimSuffix(lowerPath, ".gz")

	switch filepath.Ext(lowerPath) {
	case ".vcf":
		return FormatVCF
	case ".csv", ".tsv":
		return FormatTabular
	}

	if bytes.HasPrefix(head, []byte("##fileformat=VCF")) || bytes.HasPrefix(head, []byte("#CHROM")) {
		return FormatVCF
	}
	if len(bytes.TrimSpace(head)) > 0 {
		return FormatTabular
	}
	// Default to VCF
	return FormatVCF
}

// source is an opened input with its decompression layer.
type source struct {
	*bufio.Reader
	file *os.File
	gz   *gzip.Reader
}

// open opens path ("-" for stdin), transparently decompressing gzip input.
func open(path string) (*source, error) {
	s := &source{}
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s.file = f
		r = f
	}

	br := bufio.NewReaderSize(r, 256*1024)
	// Check for gzip magic bytes
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		s.gz = gz
		br = bufio.NewReaderSize(gz, 256*1024)
	}
	s.Reader = br
	return s, nil
}

// head returns up to n bytes without consuming them.
func (s *source) head(n int) ([]byte, error) {
	b, err := s.Peek(n)
	if err == io.EOF || err == bufio.ErrBufferFull {
		err = nil
	}
	return b, err
}

// Close closes the decompressor and the underlying file.
func (s *source) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
