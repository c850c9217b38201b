// Package harvest drives the two-phase comment harvest: listing pages are
// pulled one at a time, split into fixed-size chunks, and each chunk's
// comments are fetched concurrently before being appended to the output log.
package harvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"townhall-comments/pkg/comment"
	"townhall-comments/pkg/domain"
	"townhall-comments/pkg/httpclient"
	"townhall-comments/pkg/listing"
	"townhall-comments/pkg/sink"

	"github.com/rs/zerolog/log"
)

// Default parameters for the Virginia Regulatory Town Hall comment forum.
const (
	DefaultListURL       = "https://townhall.virginia.gov/L/Comments.cfm?GdocForumID=1953"
	DefaultTotalComments = 71297
	DefaultPerPage       = 1000
	DefaultChunkSize     = 50
	DefaultOutputPath    = "output/scraped_public_comments.jsonl"
)

// Config holds the harvest parameters.
type Config struct {
	ListURL       string
	OutputPath    string
	TotalComments int
	PerPage       int
	StartPage     int
	ChunkSize     int
}

// DefaultConfig returns the configuration for a full harvest of the forum.
func DefaultConfig() Config {
	return Config{
		ListURL:       DefaultListURL,
		OutputPath:    DefaultOutputPath,
		TotalComments: DefaultTotalComments,
		PerPage:       DefaultPerPage,
		StartPage:     1,
		ChunkSize:     DefaultChunkSize,
	}
}

// PageSource yields listing pages one at a time.
type PageSource interface {
	More() bool
	Next(ctx context.Context) ([]domain.CommentStub, error)
}

// CommentFetcher fetches one stub's full comment. A (nil, nil) return means
// the stub was dropped (recoverable per-item failure).
type CommentFetcher interface {
	Fetch(ctx context.Context, stub domain.CommentStub) (*domain.Comment, error)
}

// Runner executes one harvest run.
type Runner struct {
	cfg     Config
	pages   PageSource
	fetcher CommentFetcher
	out     sink.RecordSink
}

// New assembles a runner from explicit components.
func New(cfg Config, pages PageSource, fetcher CommentFetcher, out sink.RecordSink) *Runner {
	return &Runner{
		cfg:     cfg,
		pages:   pages,
		fetcher: fetcher,
		out:     out,
	}
}

// NewRunner wires a runner from the configuration using the forum HTTP
// client, the listing pager and the JSONL sink.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}

	client := httpclient.NewClient(httpclient.BrowserClient)

	pager, err := listing.NewPager(listing.Config{
		ListURL:   cfg.ListURL,
		Total:     cfg.TotalComments,
		PerPage:   cfg.PerPage,
		StartPage: cfg.StartPage,
	}, client)
	if err != nil {
		return nil, err
	}

	return New(cfg, pager, comment.NewFetcher(client), sink.NewJSONLSink(cfg.OutputPath)), nil
}

// Run drives the page source until it is exhausted. Any fatal error aborts
// the run; chunks already appended stay in the log.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	written := 0

	for r.pages.More() {
		page, err := r.pages.Next(ctx)
		if err != nil {
			return err
		}

		for _, chunk := range chunks(page, r.cfg.ChunkSize) {
			results, err := r.fetchChunk(ctx, chunk)
			if err != nil {
				return err
			}

			if err := r.out.Append(ctx, results); err != nil {
				return err
			}
			written += len(results)

			log.Info().
				Int("chunk_size", len(chunk)).
				Int("chunk_written", len(results)).
				Int("written", written).
				Msg("Chunk appended to output log")
		}
	}

	log.Info().
		Int("written", written).
		Dur("duration", time.Since(start)).
		Msg("Harvest complete")

	return nil
}

// fetchChunk fetches every stub in the chunk concurrently. The chunk
// boundary is a synchronization barrier: all fetches are joined before the
// results are returned, in stub order, with dropped stubs omitted.
func (r *Runner) fetchChunk(ctx context.Context, chunk []domain.CommentStub) ([]*domain.Comment, error) {
	results := make([]*domain.Comment, len(chunk))
	errs := make([]error, len(chunk))

	var wg sync.WaitGroup
	for i, stub := range chunk {
		wg.Add(1)
		go func(i int, stub domain.CommentStub) {
			defer wg.Done()
			results[i], errs[i] = r.fetcher.Fetch(ctx, stub)
		}(i, stub)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	comments := make([]*domain.Comment, 0, len(chunk))
	for _, c := range results {
		if c != nil {
			comments = append(comments, c)
		}
	}

	return comments, nil
}

// chunks splits stubs into fixed-size groups; the last group may be short.
func chunks(stubs []domain.CommentStub, size int) [][]domain.CommentStub {
	var out [][]domain.CommentStub
	for start := 0; start < len(stubs); start += size {
		end := start + size
		if end > len(stubs) {
			end = len(stubs)
		}
		out = append(out, stubs[start:end])
	}
	return out
}
