package output

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/inodb/vibe-pgx/internal/features"
)

// WriteFeatureCSV writes feature vectors with the schema columns as header.
func WriteFeatureCSV(w io.Writer, vectors []features.Vector) error {
	if vectors == nil {
		vectors = []features.Vector{}
	}
	if err := gocsv.Marshal(vectors, w); err != nil {
		return fmt.Errorf("write feature csv: %w", err)
	}
	return nil
}
