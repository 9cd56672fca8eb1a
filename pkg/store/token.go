package store

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidToken is returned for tokens this store did not mint.
var ErrInvalidToken = errors.New("invalid pagination token")

const tokenPrefix = "r"

// MintToken encodes a position as a pagination token.
func MintToken(p Position) string {
	return tokenPrefix + strconv.FormatInt(int64(p), 10)
}

// ParseToken decodes a token produced by MintToken.
func ParseToken(s string) (Position, error) {
	rest, ok := strings.CutPrefix(s, tokenPrefix)
	if !ok || rest == "" {
		return 0, errors.Wrapf(ErrInvalidToken, "%q", s)
	}

	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Wrapf(ErrInvalidToken, "%q", s)
	}
	return Position(n), nil
}
