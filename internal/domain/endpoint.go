package domain

import (
	"github.com/pkg/errors"
)

// Version selects the path prefix of the endpoint. Both prefixes have the
// same semantics; which one to use is negotiated out of band.
type Version string

const (
	VersionUnstable Version = "unstable"
	VersionV1       Version = "v1"
)

// Endpoint metadata for GET .../rooms/{roomId}/relations/{eventId}/{relType}/{eventType}.
const (
	RelationsMethod = "GET"
	// RelationsRoute is the path below the version prefix, in router syntax.
	RelationsRoute = "/rooms/:room_id/relations/:event_id/:rel_type/:event_type"
	// RelationsAddedIn is the protocol version that stabilized the endpoint.
	RelationsAddedIn = "1.3"
)

// Versions lists every prefix a server should serve.
func Versions() []Version {
	return []Version{VersionUnstable, VersionV1}
}

// ParseVersion accepts "unstable" or "v1".
func ParseVersion(s string) (Version, error) {
	switch v := Version(s); v {
	case VersionUnstable, VersionV1:
		return v, nil
	}
	return "", errors.Errorf("unknown api version %q", s)
}

// Prefix returns the path prefix, e.g. "/_matrix/client/v1".
func (v Version) Prefix() string {
	return "/_matrix/client/" + string(v)
}
