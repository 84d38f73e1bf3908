package annotate

import (
	"context"
	"sync"

	"github.com/inodb/vibe-pgx/internal/vcf"
)

// annotationJob is one parsed variant queued for annotation. seq is its
// zero-based position in the input and line its source line.
type annotationJob struct {
	seq     int
	line    int
	variant *vcf.Variant
}

type annotationResult struct {
	annotationJob
	record *Record
	err    error
}

// annotateConcurrently runs workers goroutines over jobs and returns their
// results in completion order. Workers stop early once ctx is done, so a
// consumer that quits reading must cancel ctx. The channel closes when every
// worker has returned.
func (a *Annotator) annotateConcurrently(ctx context.Context, jobs <-chan annotationJob, workers int) <-chan annotationResult {
	out := make(chan annotationResult, 2*workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				rec, err := a.Annotate(ctx, job.variant)
				select {
				case out <- annotationResult{annotationJob: job, record: rec, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// emitInOrder passes results to fn by ascending seq, holding back those that
// finish ahead of an earlier one. It returns fn's first error as is. When the
// stream ends because ctx was cancelled the records are incomplete and ctx's
// error is returned.
func emitInOrder(ctx context.Context, results <-chan annotationResult, fn func(annotationResult) error) error {
	held := make(map[int]annotationResult)
	next := 0
	for r := range results {
		held[r.seq] = r
		for {
			ready, ok := held[next]
			if !ok {
				break
			}
			delete(held, next)
			next++
			if err := fn(ready); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}
