package annotate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-pgx/internal/knowledge"
	"github.com/inodb/vibe-pgx/internal/vcf"
)

func makeJobs(n int) <-chan annotationJob {
	ch := make(chan annotationJob, n)
	for i := range n {
		ch <- annotationJob{
			seq:  i,
			line: i + 2,
			variant: &vcf.Variant{
				Chrom: "1",
				Pos:   int64(100 + i),
				Ref:   "A",
				Alt:   "T",
			},
		}
	}
	close(ch)
	return ch
}

func collectSeqs(t *testing.T, jobs, workers int) []int {
	t.Helper()
	ann := NewAnnotator(knowledge.Default())
	ctx := context.Background()

	var seqs []int
	err := emitInOrder(ctx, ann.annotateConcurrently(ctx, makeJobs(jobs), workers), func(r annotationResult) error {
		require.NoError(t, r.err)
		assert.Equal(t, r.seq+2, r.line)
		seqs = append(seqs, r.seq)
		return nil
	})
	require.NoError(t, err)
	return seqs
}

func TestEmitInOrder_Sequence(t *testing.T) {
	for _, workers := range []int{1, 4, 8} {
		seqs := collectSeqs(t, 200, workers)
		require.Len(t, seqs, 200)
		for i, seq := range seqs {
			assert.Equal(t, i, seq, "workers=%d: result %d out of order", workers, i)
		}
	}
}

func TestEmitInOrder_EmptyInput(t *testing.T) {
	assert.Empty(t, collectSeqs(t, 0, 4))
}

func TestEmitInOrder_CallbackErrorStops(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := errors.New("stop")
	count := 0
	err := emitInOrder(ctx, ann.annotateConcurrently(ctx, makeJobs(100), 4), func(r annotationResult) error {
		count++
		if r.seq == 9 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 10, count)
}

func TestAnnotateConcurrently_CancelledContext(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := ann.annotateConcurrently(ctx, makeJobs(100), 4)
	err := emitInOrder(ctx, results, func(annotationResult) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	_, open := <-results
	assert.False(t, open)
}

func TestAnnotateConcurrently_Records(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	ctx := context.Background()

	err := emitInOrder(ctx, ann.annotateConcurrently(ctx, makeJobs(5), 2), func(r annotationResult) error {
		require.NotNil(t, r.record)
		assert.Equal(t, r.variant.Pos, r.record.Pos)
		assert.Equal(t, ConsequenceIntergenicVariant, r.record.Consequence)
		return nil
	})
	require.NoError(t, err)
}

func TestAnnotateConcurrently_PerJobError(t *testing.T) {
	ann := NewAnnotator(knowledge.Default())
	ctx := context.Background()

	ch := make(chan annotationJob, 2)
	ch <- annotationJob{seq: 0, variant: &vcf.Variant{Chrom: "1", Pos: 10, Ref: "A", Alt: "G"}}
	ch <- annotationJob{seq: 1, variant: &vcf.Variant{Chrom: "1", Pos: 11, Ref: "A", Alt: "Z"}}
	close(ch)

	var errs []error
	err := emitInOrder(ctx, ann.annotateConcurrently(ctx, ch, 2), func(r annotationResult) error {
		errs = append(errs, r.err)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, errs, 2)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], vcf.ErrInvalid)
}
