package ownership

import (
	"context"
)

// PageFetcher is the interface the paginator walks. It is satisfied by
// *Client and by test fakes.
type PageFetcher interface {
	// FetchPage fetches a single page of entries for a user.
	FetchPage(ctx context.Context, userID string, page, size int) ([]Entry, error)
}

// Paginator is a lazy, restartable sequence of reading-list pages.
//
// The ownership service exposes no total count, so termination is inferred
// purely from page fullness: a page shorter than the requested size is the
// last page, and an empty page terminates immediately. A last page that
// happens to be exactly full costs one extra (empty) fetch.
//
// Pagination is strictly sequential: whether another page exists depends on
// the length of the previous one, so pages cannot be fetched in parallel.
type Paginator struct {
	fetcher PageFetcher
	userID  string
	size    int
	page    int
	done    bool
}

// NewPaginator creates a paginator over a user's reading list.
func NewPaginator(fetcher PageFetcher, userID string, size int) *Paginator {
	if size <= 0 {
		size = 20
	}
	return &Paginator{
		fetcher: fetcher,
		userID:  userID,
		size:    size,
	}
}

// Next yields the next page of entries. The second return value is false
// once the sequence is exhausted. Any fetch error ends the sequence and is
// fatal to the caller's aggregation.
func (p *Paginator) Next(ctx context.Context) ([]Entry, bool, error) {
	if p.done {
		return nil, false, nil
	}

	entries, err := p.fetcher.FetchPage(ctx, p.userID, p.page, p.size)
	if err != nil {
		p.done = true
		return nil, false, err
	}
	p.page++

	// An empty page terminates immediately without error.
	if len(entries) == 0 {
		p.done = true
		return nil, false, nil
	}

	// A short page is the last page.
	if len(entries) < p.size {
		p.done = true
	}

	return entries, true, nil
}

// Reset rewinds the paginator to the first page.
func (p *Paginator) Reset() {
	p.page = 0
	p.done = false
}

// PageIndex returns the index of the next page to be fetched.
func (p *Paginator) PageIndex() int {
	return p.page
}
