package claims

import "errors"

// Structural/security errors, per the failure taxonomy in spec.md §7.
// Decode returns the malformed, algorithm, issuer and subject errors, and
// Mint returns ErrMissingSubject (hard failures). Validate does not return
// these errors: it reports signature and time problems in its result.
// ErrExpiredToken and ErrTokenNotYetValid are returned by callers that
// turn a validation result into an error (the host's claims caching);
// ErrSignatureMismatch is not returned by this package.
var (
	ErrMalformedToken   = errors.New("claims: malformed token")
	ErrBadAlgorithm     = errors.New("claims: unsupported algorithm")
	ErrMissingIssuer    = errors.New("claims: missing issuer")
	ErrMissingSubject   = errors.New("claims: missing subject")
	ErrExpiredToken     = errors.New("claims: expired token")
	ErrTokenNotYetValid = errors.New("claims: token not yet valid")
	ErrSignatureMismatch = errors.New("claims: signature mismatch")
)
