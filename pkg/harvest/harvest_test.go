package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"townhall-comments/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPages yields a fixed set of pages.
type stubPages struct {
	pages [][]domain.CommentStub
	idx   int
}

func (s *stubPages) More() bool { return s.idx < len(s.pages) }

func (s *stubPages) Next(ctx context.Context) ([]domain.CommentStub, error) {
	page := s.pages[s.idx]
	s.idx++
	return page, nil
}

// fakeFetcher completes stubs in-memory. Stubs listed in drop return the
// no-result sentinel; delay scrambles completion order within a chunk.
type fakeFetcher struct {
	drop  map[string]bool
	delay map[string]time.Duration
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, stub domain.CommentStub) (*domain.Comment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if d, ok := f.delay[stub.URL]; ok {
		time.Sleep(d)
	}
	if f.drop[stub.URL] {
		return nil, nil
	}
	return &domain.Comment{
		URL:         stub.URL,
		Page:        stub.Page,
		Title:       stub.Title,
		Commenter:   stub.Commenter,
		CommentText: "body of " + stub.URL,
		CommentHTML: "<p>body of " + stub.URL + "</p>",
		Date:        stub.Date,
	}, nil
}

// captureSink records every appended chunk. Appends happen serially on the
// orchestrator goroutine, so no locking is needed.
type captureSink struct {
	batches [][]*domain.Comment
}

func (c *captureSink) Append(ctx context.Context, comments []*domain.Comment) error {
	c.batches = append(c.batches, comments)
	return nil
}

func makeStubs(n int) []domain.CommentStub {
	stubs := make([]domain.CommentStub, n)
	for i := range stubs {
		stubs[i] = domain.CommentStub{
			Page:      1,
			URL:       fmt.Sprintf("https://example.com/viewcomments.cfm?commentid=%d", i+1),
			Title:     fmt.Sprintf("comment %d", i+1),
			Commenter: "Jane Roe",
			Date:      "3/1/23  10:12 am",
		}
	}
	return stubs
}

func TestRunner_PreservesChunkOrder(t *testing.T) {
	stubs := makeStubs(5)

	// Earlier stubs take longer, so completion order is the reverse of
	// input order; output order must still match input order.
	delay := map[string]time.Duration{}
	for i, s := range stubs {
		delay[s.URL] = time.Duration(len(stubs)-i) * 5 * time.Millisecond
	}

	out := &captureSink{}
	runner := New(
		Config{ChunkSize: 2},
		&stubPages{pages: [][]domain.CommentStub{stubs}},
		&fakeFetcher{delay: delay},
		out,
	)

	require.NoError(t, runner.Run(context.Background()))

	// 5 stubs at chunk size 2: barriers after 2, 2, 1.
	require.Len(t, out.batches, 3)
	assert.Len(t, out.batches[0], 2)
	assert.Len(t, out.batches[1], 2)
	assert.Len(t, out.batches[2], 1)

	var urls []string
	for _, batch := range out.batches {
		for _, c := range batch {
			urls = append(urls, c.URL)
		}
	}
	for i, s := range stubs {
		assert.Equal(t, s.URL, urls[i])
	}
}

func TestRunner_DroppedStubsWriteNothing(t *testing.T) {
	stubs := makeStubs(4)
	out := &captureSink{}
	runner := New(
		Config{ChunkSize: 50},
		&stubPages{pages: [][]domain.CommentStub{stubs}},
		&fakeFetcher{drop: map[string]bool{stubs[1].URL: true}},
		out,
	)

	require.NoError(t, runner.Run(context.Background()))

	require.Len(t, out.batches, 1)
	batch := out.batches[0]
	require.Len(t, batch, 3)

	// No placeholder for the dropped stub; survivors keep relative order.
	assert.Equal(t, stubs[0].URL, batch[0].URL)
	assert.Equal(t, stubs[2].URL, batch[1].URL)
	assert.Equal(t, stubs[3].URL, batch[2].URL)
}

func TestRunner_FetchErrorAborts(t *testing.T) {
	fatal := errors.New("page shape changed")
	out := &captureSink{}
	runner := New(
		Config{ChunkSize: 2},
		&stubPages{pages: [][]domain.CommentStub{makeStubs(3)}},
		&fakeFetcher{err: fatal},
		out,
	)

	err := runner.Run(context.Background())
	require.ErrorIs(t, err, fatal)
	assert.Empty(t, out.batches)
}

func TestChunks(t *testing.T) {
	got := chunks(makeStubs(120), 50)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 50)
	assert.Len(t, got[1], 50)
	assert.Len(t, got[2], 20)

	assert.Len(t, chunks(makeStubs(3), 50), 1)
	assert.Empty(t, chunks(nil, 50))
}

const listingFixture = `<html><body>
<div id="contentwide">
<table>
<tr><th>Comment Title</th><th>Commenter</th><th>Date</th></tr>
<tr>
  <td><a href="viewcomments.cfm?commentid=101">No to this proposal</a></td>
  <td>Jane Roe</td>
  <td>3/1/23  10:12 am</td>
</tr>
<tr>
  <td><a href="viewcomments.cfm?commentid=102">Gone comment</a></td>
  <td>John Doe</td>
  <td>3/1/23  10:14 am</td>
</tr>
<tr>
  <td><a href="viewcomments.cfm?commentid=103">Please reconsider</a></td>
  <td>A. Citizen</td>
  <td>3/1/23  10:20 am</td>
</tr>
</table>
</div>
</body></html>`

const detailFixture = `<html><body>
<div id="contentwide">
<div class="divComment"><p>comment %s body</p></div>
</div>
</body></html>`

func TestRunner_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/L/Comments.cfm":
			w.Write([]byte(listingFixture))
		case "/L/viewcomments.cfm":
			id := r.URL.Query().Get("commentid")
			if id == "102" {
				// One detail page is gone: recoverable, written as nothing.
				http.NotFound(w, r)
				return
			}
			fmt.Fprintf(w, detailFixture, id)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	outPath := filepath.Join(t.TempDir(), "comments.jsonl")
	runner, err := NewRunner(Config{
		ListURL:       server.URL + "/L/Comments.cfm?GdocForumID=1953",
		OutputPath:    outPath,
		TotalComments: 3,
		PerPage:       1000,
		StartPage:     1,
		ChunkSize:     50,
	})
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)

	assert.Contains(t, lines[0], "commentid=101")
	assert.Contains(t, lines[0], "comment 101 body")
	assert.Contains(t, lines[1], "commentid=103")
	assert.Contains(t, lines[1], `"commenter":"A. Citizen"`)
}
