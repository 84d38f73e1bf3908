package variantfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/inodb/vibe-pgx/internal/annotate"
	"github.com/inodb/vibe-pgx/internal/tabular"
	"github.com/inodb/vibe-pgx/internal/vcf"
)

// Options controls how a file is read and annotated.
type Options struct {
	Format  Format // FormatAuto detects from extension and content
	Workers int    // <= 0 uses runtime.NumCPU(), 1 is sequential
}

// Parse reads the file at path ("-" for stdin), annotates every row and
// returns the records in file order.
//
// Row-level problems return an error satisfying errors.Is(err, vcf.ErrInvalid)
// and no records. Failures to open, read or decode the file return an *IOError.
func Parse(ctx context.Context, path string, ann *annotate.Annotator, opts Options) ([]*annotate.Record, error) {
	src, err := open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer src.Close()

	format := opts.Format
	if format == FormatAuto {
		head, err := src.head(512)
		if err != nil {
			return nil, &IOError{Path: path, Err: err}
		}
		format = DetectFormat(path, head)
	}

	parser, err := newParser(format, src)
	if err != nil {
		return nil, classify(path, err)
	}

	records, err := ann.AnnotateAll(ctx, parser, opts.Workers)
	if err != nil {
		return nil, classify(path, err)
	}
	return records, nil
}

func newParser(format Format, src *source) (vcf.VariantParser, error) {
	switch format {
	case FormatVCF:
		return vcf.NewParser(src)
	case FormatTabular:
		return tabular.NewParser(src)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// classify leaves validation and cancellation errors as they are and wraps
// everything else as an I/O failure.
func classify(path string, err error) error {
	if errors.Is(err, vcf.ErrInvalid) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &IOError{Path: path, Err: err}
}
