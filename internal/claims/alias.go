package claims

import (
	"fmt"
	"regexp"
)

var callAliasPattern = regexp.MustCompile(`^[a-z0-9_/]+$`)

// publicKeyLikePattern matches the shape of an Ed25519 public key rendered
// the way nkeys-style systems historically did: an all-uppercase 56-char
// string. The lattice never produces keys in that shape (see keys.go), but
// a call alias that collides with it would be ambiguous against clients
// that still expect that convention, so it is rejected defensively.
var publicKeyLikePattern = regexp.MustCompile(`^[A-Z0-9]{56}$`)

// SanitizeCallAlias validates a component call alias: lowercase
// alphanumerics, underscore and slash only, non-empty, and not shaped like
// a public key (which would collide with identifier-based dispatch).
func SanitizeCallAlias(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("claims: call alias must not be empty")
	}
	if publicKeyLikePattern.MatchString(s) {
		return "", fmt.Errorf("claims: call alias %q collides with public key shape", s)
	}
	if !callAliasPattern.MatchString(s) {
		return "", fmt.Errorf("claims: call alias %q contains invalid characters", s)
	}
	return s, nil
}
