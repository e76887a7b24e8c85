package claims

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SignArtifact hashes artifact bytes and mints a component claim embedding
// that hash, returning the signed claim's wire token. Embedding the token
// into the artifact itself (e.g. a custom WASM section) is out of scope
// (§4.1): callers that need an embedded artifact are expected to do that
// step themselves, using the token this returns.
//
// The contract SignArtifact exists to satisfy: a later call to
// VerifyArtifactHash(artifact, claim) must succeed for any artifact whose
// embedded section, if any, has been stripped before hashing.
func SignArtifact(artifact []byte, issuer, subject *KeyPair, meta *ComponentMetadata) (string, error) {
	if meta == nil {
		return "", fmt.Errorf("claims: sign artifact: nil component metadata")
	}
	hash := sha256.Sum256(artifact)
	metaCopy := *meta
	metaCopy.ModuleHash = hex.EncodeToString(hash[:])

	now := time.Now().Unix()
	wascap := &Wascap{Component: &metaCopy}
	return Mint(issuer, subject.PublicKeyString(), wascap, nil, nil, now)
}

// VerifyArtifactHash reports whether artifact's sha256 matches the
// module_hash embedded in a component claim. Per spec.md §9, this check is
// only meaningful for claims at or above MinModuleHashRevision; callers
// MUST treat older revisions as unverifiable, not as failing verification.
func VerifyArtifactHash(artifact []byte, c *Claims) (ok bool, verifiable bool) {
	if c.Wascap == nil || c.Wascap.Component == nil {
		return false, false
	}
	if c.WascapRevision == nil || *c.WascapRevision < MinModuleHashRevision {
		return false, false
	}
	hash := sha256.Sum256(artifact)
	return hex.EncodeToString(hash[:]) == c.Wascap.Component.ModuleHash, true
}
