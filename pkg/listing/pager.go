// Package listing pulls paginated comment-listing pages from the forum and
// extracts comment stubs from them.
package listing

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"townhall-comments/pkg/domain"
	"townhall-comments/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// commentLinkRe matches the relative detail-page links found on listing rows,
// e.g. "viewcomments.cfm?commentid=12345".
var commentLinkRe = regexp.MustCompile(`^viewcomments\.cfm\?commentid=\d+`)

// Config holds the pagination parameters for one harvest run.
type Config struct {
	// ListURL is the comment listing endpoint.
	ListURL string
	// Total is the number of stubs after which the pager is exhausted.
	Total int
	// PerPage is the page size sent in each listing request.
	PerPage int
	// StartPage is the first page number to request (manual resume).
	StartPage int
}

// Pager pulls listing pages one at a time, strictly in increasing page
// order. It is exhausted once the cumulative stub count reaches Total.
// Any fetch or extraction error is fatal: the pager yields nothing further.
type Pager struct {
	cfg     Config
	client  *httpclient.HTTPClient
	base    *url.URL
	page    int
	fetched int
	done    bool
}

// NewPager creates a pager starting at cfg.StartPage.
func NewPager(cfg Config, client *httpclient.HTTPClient) (*Pager, error) {
	base, err := url.Parse(cfg.ListURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing URL %q: %w", cfg.ListURL, err)
	}
	if cfg.StartPage <= 0 {
		cfg.StartPage = 1
	}

	return &Pager{
		cfg:    cfg,
		client: client,
		base:   base,
		page:   cfg.StartPage,
	}, nil
}

// More reports whether another page should be fetched. The guard is >=, so
// a total equal to the page size stops after exactly one page.
func (p *Pager) More() bool {
	return !p.done && p.fetched < p.cfg.Total
}

// Next fetches and parses the next listing page, returning its stubs in row
// order.
func (p *Pager) Next(ctx context.Context) ([]domain.CommentStub, error) {
	form := url.Values{}
	form.Set("vPage", strconv.Itoa(p.page))
	form.Set("vPerPage", strconv.Itoa(p.cfg.PerPage))
	form.Set("sub1", "go")
	payload := form.Encode()

	log.Info().
		Int("page", p.page).
		Str("url", p.cfg.ListURL).
		Str("body", payload).
		Int("fetched", p.fetched).
		Msg("Fetching comment listing page")

	resp, err := p.client.PostForm(ctx, p.cfg.ListURL, form)
	if err != nil {
		p.done = true
		return nil, fmt.Errorf("failed to fetch listing page %d: %w", p.page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.done = true
		return nil, fmt.Errorf("unexpected status code from %q: %d", p.cfg.ListURL, resp.StatusCode)
	}

	log.Info().
		Int("page", p.page).
		Str("url", p.cfg.ListURL).
		Str("body", payload).
		Int("fetched", p.fetched).
		Msg("Fetched comment listing page")

	stubs, err := p.extractStubs(resp.Body)
	if err != nil {
		p.done = true
		return nil, fmt.Errorf("failed to extract stubs from page %d: %w", p.page, err)
	}

	if len(stubs) == 0 {
		// The forum ran out of comments before Total was reached. Without
		// this the pager would request ever-higher empty pages forever.
		log.Warn().
			Int("page", p.page).
			Int("fetched", p.fetched).
			Int("total", p.cfg.Total).
			Msg("Listing page has no comment rows, stopping pagination")
		p.done = true
		return nil, nil
	}

	p.fetched += len(stubs)
	p.page++

	return stubs, nil
}

// extractStubs scans the content region of a listing page for comment rows.
// A row qualifies only if it links to a comment detail page; qualifying rows
// must carry exactly the title, commenter and date cells.
func (p *Pager) extractStubs(r io.Reader) ([]domain.CommentStub, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var stubs []domain.CommentStub
	var rowErr error

	doc.Find("#contentwide tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		var href string
		row.Find("a[href]").EachWithBreak(func(j int, link *goquery.Selection) bool {
			h, _ := link.Attr("href")
			if commentLinkRe.MatchString(h) {
				href = h
				return false
			}
			return true
		})
		if href == "" {
			// Structural or navigation row, not a comment entry.
			return true
		}

		cells := row.Find("td")
		if cells.Length() != 3 {
			rowErr = fmt.Errorf("comment row has %d cells, want 3 (title, commenter, date): %q",
				cells.Length(), strings.TrimSpace(row.Text()))
			return false
		}

		ref, err := url.Parse(href)
		if err != nil {
			rowErr = fmt.Errorf("invalid comment link %q: %w", href, err)
			return false
		}

		stubs = append(stubs, domain.CommentStub{
			Page:      p.page,
			URL:       p.base.ResolveReference(ref).String(),
			Title:     strings.TrimSpace(cells.Eq(0).Text()),
			Commenter: strings.TrimSpace(cells.Eq(1).Text()),
			Date:      strings.TrimSpace(cells.Eq(2).Text()),
		})
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}

	return stubs, nil
}
