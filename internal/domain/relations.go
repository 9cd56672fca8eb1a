package domain

import (
	"encoding/json"
)

// ============================================================================
// Request
// ============================================================================

// RelationsRequest asks for the children of a parent event that relate to it
// with RelType and have type EventType.
//
// The four identifying fields are mandatory and become path segments. From,
// To and Limit are optional; nil means the query parameter is not sent at all.
// Requests are values: the With* methods return modified copies.
type RelationsRequest struct {
	RoomID    RoomID
	EventID   EventID
	RelType   RelationType
	EventType EventType

	// From is where to start returning results. When nil the server starts
	// at the most recent event it knows about.
	From *Token

	// To is where to stop returning results.
	To *Token

	// Limit caps the number of events in a chunk. When nil the server picks
	// its own default, and it may clamp any value to a maximum.
	Limit *uint32
}

// NewRelationsRequest builds a request without pagination bounds or limit.
// Identifiers are not validated here; unknown relation and event types are
// forwarded as-is.
func NewRelationsRequest(roomID RoomID, eventID EventID, relType RelationType, eventType EventType) RelationsRequest {
	return RelationsRequest{
		RoomID:    roomID,
		EventID:   eventID,
		RelType:   relType,
		EventType: eventType,
	}
}

// WithFrom returns a copy of r starting at token.
func (r RelationsRequest) WithFrom(token Token) RelationsRequest {
	r.From = &token
	return r
}

// WithTo returns a copy of r bounded by token.
func (r RelationsRequest) WithTo(token Token) RelationsRequest {
	r.To = &token
	return r
}

// WithLimit returns a copy of r asking for at most n events per chunk.
func (r RelationsRequest) WithLimit(n uint32) RelationsRequest {
	r.Limit = &n
	return r
}

// ContinueForward builds the request for the page after prior. The identifying
// fields, To and Limit are carried over and From is set to prior's next_batch.
// It fails with ErrNoMoreResults when prior is the last page.
func (r RelationsRequest) ContinueForward(prior *RelationsResponse) (RelationsRequest, error) {
	if !prior.HasMoreForward() {
		return RelationsRequest{}, ErrNoMoreResults
	}
	return r.WithFrom(*prior.NextBatch), nil
}

// ============================================================================
// Response
// ============================================================================

// RelationsResponse is one page of relating events.
type RelationsResponse struct {
	// Chunk holds the child events, most recent first in the server's
	// topological order. Payloads are left undecoded.
	Chunk []json.RawMessage `json:"chunk"`

	// NextBatch is absent when there are no further results.
	NextBatch *Token `json:"next_batch,omitempty"`

	// PrevBatch is absent when this page is the start of the result set.
	PrevBatch *Token `json:"prev_batch,omitempty"`
}

// NewRelationsResponse creates a response holding chunk and no tokens.
func NewRelationsResponse(chunk []json.RawMessage) *RelationsResponse {
	if chunk == nil {
		chunk = []json.RawMessage{}
	}
	return &RelationsResponse{Chunk: chunk}
}

// HasMoreForward reports whether next_batch is present. An empty chunk with a
// next_batch still has more.
func (r *RelationsResponse) HasMoreForward() bool {
	return r != nil && r.NextBatch != nil
}

// IsFirstPage reports whether prev_batch is absent.
func (r *RelationsResponse) IsFirstPage() bool {
	return r == nil || r.PrevBatch == nil
}
