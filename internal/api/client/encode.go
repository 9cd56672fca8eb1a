package client

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/Zereker/relations/internal/domain"
)

// EncodePath renders the request's path under the given version prefix. The
// room and event IDs are validated here; relation and event types are never
// checked against the known sets.
func EncodePath(v domain.Version, req domain.RelationsRequest) (string, error) {
	if err := req.RoomID.Validate(); err != nil {
		return "", err
	}
	if err := req.EventID.Validate(); err != nil {
		return "", err
	}

	segments := []string{
		"rooms", url.PathEscape(req.RoomID.String()),
		"relations", url.PathEscape(req.EventID.String()),
		url.PathEscape(req.RelType.String()),
		url.PathEscape(req.EventType.String()),
	}
	return v.Prefix() + "/" + strings.Join(segments, "/"), nil
}

// EncodeQuery renders the optional parameters. Unset parameters are omitted.
func EncodeQuery(req domain.RelationsRequest) (url.Values, error) {
	q := url.Values{}
	if req.From != nil {
		text, err := req.From.MarshalText()
		if err != nil {
			return nil, errors.Wrap(err, "encode from")
		}
		q.Set("from", string(text))
	}
	if req.To != nil {
		text, err := req.To.MarshalText()
		if err != nil {
			return nil, errors.Wrap(err, "encode to")
		}
		q.Set("to", string(text))
	}
	if req.Limit != nil {
		q.Set("limit", strconv.FormatUint(uint64(*req.Limit), 10))
	}
	return q, nil
}

// EncodeURI renders path and query, the part of the URL after the host.
func EncodeURI(v domain.Version, req domain.RelationsRequest) (string, error) {
	path, err := EncodePath(v, req)
	if err != nil {
		return "", err
	}

	q, err := EncodeQuery(req)
	if err != nil {
		return "", err
	}
	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}
