package domain

import "log/slog"

// Token is an opaque pagination cursor minted by the server. Clients hold it,
// compare it and send it back; they never build or inspect one.
//
// The only way to obtain a Token is to decode it from a server response (or
// from a flag that carries one verbatim), which goes through UnmarshalText.
type Token struct {
	value string
}

// MarshalText returns the token exactly as the server issued it.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.value), nil
}

// UnmarshalText stores the server-issued bytes without interpretation.
func (t *Token) UnmarshalText(text []byte) error {
	t.value = string(text)
	return nil
}

// LogValue keeps token contents out of logs.
func (t Token) LogValue() slog.Value {
	return slog.StringValue("<token>")
}
