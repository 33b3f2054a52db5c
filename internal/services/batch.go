package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vrsjns/bearlink-sub000/internal/models"
)

const (
	// MaxBulkItems caps a single bulk request.
	MaxBulkItems = 50

	workerCount = 5
)

// BulkResult is one per-item outcome; exactly one field is set.
type BulkResult struct {
	ShortURL string `json:"shortUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CreateFunc creates a single link and returns its short URL.
type CreateFunc func(ctx context.Context, req models.CreateRequest) (string, error)

// BulkCreate fans items out over a bounded worker pool. Per-item failures
// land in the result slice, never abort the batch, and results keep the
// request order.
func BulkCreate(ctx context.Context, reqs []models.CreateRequest, create CreateFunc) []BulkResult {
	results := make([]BulkResult, len(reqs))
	indexes := make(chan int, len(reqs))
	for i := range reqs {
		indexes <- i
	}
	close(indexes)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workerCount; w++ {
		g.Go(func() error {
			for i := range indexes {
				shortURL, err := create(ctx, reqs[i])
				if err != nil {
					results[i] = BulkResult{Error: err.Error()}
					continue
				}
				results[i] = BulkResult{ShortURL: shortURL}
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
