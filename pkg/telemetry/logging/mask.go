package logging

import (
	"log/slog"
)

// IdentityKey is the attribute key identities are logged under.
const IdentityKey = "identity"

// maskedPrefix is how many leading characters of an identity stay visible.
const maskedPrefix = 4

// MaskIdentity keeps the first four characters of id and replaces the rest
// with "***". Identities of four characters or fewer are fully masked.
func MaskIdentity(id string) string {
	r := []rune(id)
	if len(r) <= maskedPrefix {
		return "***"
	}
	return string(r[:maskedPrefix]) + "***"
}

// maskIdentityAttr masks identity attributes at any group depth.
func maskIdentityAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key != IdentityKey {
		return a
	}
	return slog.String(IdentityKey, MaskIdentity(a.Value.Resolve().String()))
}
