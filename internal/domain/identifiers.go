package domain

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// maxIdentifierLength is the byte limit the protocol puts on room and event IDs.
const maxIdentifierLength = 255

const (
	roomSigil  = '!'
	eventSigil = '$'
)

// RoomID identifies a room, e.g. "!abc:example.org".
type RoomID string

// EventID identifies an event, e.g. "$parent:example.org" or "$opaque".
type EventID string

func (id RoomID) String() string  { return string(id) }
func (id EventID) String() string { return string(id) }

// Validate checks the room ID grammar: sigil, non-empty localpart, ':' and a server name.
func (id RoomID) Validate() error {
	s := string(id)
	if err := checkSigil(s, roomSigil); err != nil {
		return errors.WithMessagef(err, "room id %q", s)
	}

	localpart, server, ok := strings.Cut(s[1:], ":")
	if !ok || localpart == "" || server == "" {
		return errors.Wrapf(ErrMalformedIdentifier, "room id %q: expected !localpart:server", s)
	}
	return nil
}

// Validate checks the event ID grammar. Newer room versions drop the server
// suffix, so it is optional, but both halves must be non-empty when present.
func (id EventID) Validate() error {
	s := string(id)
	if err := checkSigil(s, eventSigil); err != nil {
		return errors.WithMessagef(err, "event id %q", s)
	}

	localpart, server, ok := strings.Cut(s[1:], ":")
	if localpart == "" || (ok && server == "") {
		return errors.Wrapf(ErrMalformedIdentifier, "event id %q", s)
	}
	return nil
}

func checkSigil(s string, sigil byte) error {
	if len(s) < 2 {
		return errors.Wrap(ErrMalformedIdentifier, "too short")
	}
	if len(s) > maxIdentifierLength {
		return errors.Wrapf(ErrMalformedIdentifier, "longer than %d bytes", maxIdentifierLength)
	}
	if s[0] != sigil {
		return errors.Wrapf(ErrMalformedIdentifier, "must start with %q", sigil)
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return errors.Wrap(ErrMalformedIdentifier, "contains whitespace or control characters")
	}
	return nil
}
