// Package comment fetches a single comment's detail page and extracts its
// body text and markup.
package comment

import (
	"context"
	"fmt"

	"townhall-comments/pkg/domain"
	"townhall-comments/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Fetcher retrieves comment detail pages.
type Fetcher struct {
	client *httpclient.HTTPClient
}

// NewFetcher creates a fetcher using the given client.
func NewFetcher(client *httpclient.HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads the stub's detail page and returns the completed comment.
// A non-2xx response is a recoverable per-item failure: it is logged and
// (nil, nil) is returned so the caller drops the stub. A page without a
// comment body is a fatal error.
func (f *Fetcher) Fetch(ctx context.Context, stub domain.CommentStub) (*domain.Comment, error) {
	log.Info().Str("url", stub.URL).Msg("Fetching public comment")

	resp, err := f.client.Get(ctx, stub.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comment %q: %w", stub.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("url", stub.URL).
			Int("status", resp.StatusCode).
			Msg("Non-2xx response for comment, dropping it")
		return nil, nil
	}

	log.Info().Str("url", stub.URL).Msg("Fetched public comment")

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse comment page %q: %w", stub.URL, err)
	}

	bodies := doc.Find("#contentwide").First().Find(".divComment")
	if bodies.Length() == 0 {
		return nil, fmt.Errorf("no comment body found on %q", stub.URL)
	}
	if bodies.Length() > 1 {
		log.Warn().
			Str("url", stub.URL).
			Int("bodies", bodies.Length()).
			Msg("Comment page has more than one comment body, using the first")
	}

	body := bodies.First()
	html, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render comment body on %q: %w", stub.URL, err)
	}

	return &domain.Comment{
		URL:         stub.URL,
		Page:        stub.Page,
		Title:       stub.Title,
		Commenter:   stub.Commenter,
		CommentText: body.Text(),
		CommentHTML: html,
		Date:        stub.Date,
	}, nil
}
