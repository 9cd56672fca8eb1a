package client

import (
	"context"

	"github.com/Zereker/relations/internal/domain"
)

// Pager walks a relations query forward page by page until the server stops
// returning next_batch. A Pager is not safe for concurrent use; start one
// Pager per traversal.
type Pager struct {
	client *Client
	next   domain.RelationsRequest
	done   bool
}

// Pages starts a forward traversal at req.
func (c *Client) Pages(req domain.RelationsRequest) *Pager {
	return &Pager{client: c, next: req}
}

// HasNext reports whether another page may be fetched.
func (p *Pager) HasNext() bool {
	return !p.done
}

// Next fetches the next page. On error the Pager does not advance, so the same
// page can be requested again when the error is retryable. After the last page
// Next returns domain.ErrNoMoreResults.
func (p *Pager) Next(ctx context.Context) (*domain.RelationsResponse, error) {
	if p.done {
		return nil, domain.ErrNoMoreResults
	}

	resp, err := p.client.GetRelatingEvents(ctx, p.next)
	if err != nil {
		return nil, err
	}

	next, err := p.next.ContinueForward(resp)
	if err != nil {
		p.done = true
		return resp, nil
	}
	p.next = next
	return resp, nil
}

// Request returns the request the next call to Next would send.
func (p *Pager) Request() domain.RelationsRequest {
	return p.next
}

// Walk calls fn for every page until the traversal is exhausted or fn or a
// request fails.
func (c *Client) Walk(ctx context.Context, req domain.RelationsRequest, fn func(*domain.RelationsResponse) error) error {
	p := c.Pages(req)
	for p.HasNext() {
		resp, err := p.Next(ctx)
		if err != nil {
			return err
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
	return nil
}
