package claims

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ValidationResult reports the outcome of validating a token's signature
// and time bounds. Signature and time failures are reported here rather
// than raised, per spec.md §4.1; only structural errors from Decode are
// raised as errors.
type ValidationResult struct {
	SignatureValid    bool
	Expired           bool
	NotYetValid       bool
	HumanExpiresIn    string
	HumanNotBeforeIn  string
}

// Validate decodes token, verifies its Ed25519 signature against the
// issuer public key embedded in the body (iss), and checks nbf/exp against
// now. Structural errors (bad segments, header, base64, json, missing
// iss/sub) are returned as errors; signature and time problems are
// reported in the returned ValidationResult without error.
func Validate(token string, now time.Time) (*ValidationResult, error) {
	claimsBody, err := Decode(token)
	if err != nil {
		return nil, err
	}

	segs := segments(token)
	signingString := segs[0] + "." + segs[1]
	sigBytes, err := b64.DecodeString(segs[2])
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature base64: %v", ErrMalformedToken, err)
	}

	issuerKey, err := ParsePublicKey(claimsBody.Iss)
	if err != nil {
		return nil, fmt.Errorf("%w: bad issuer key: %v", ErrMalformedToken, err)
	}

	result := &ValidationResult{}
	result.SignatureValid = jwt.SigningMethodEdDSA.Verify(signingString, sigBytes, issuerKey) == nil

	nowUnix := now.Unix()
	if claimsBody.Exp != nil {
		if nowUnix >= *claimsBody.Exp {
			result.Expired = true
			result.HumanExpiresIn = humanDuration(*claimsBody.Exp - nowUnix)
		} else {
			result.HumanExpiresIn = humanDuration(*claimsBody.Exp - nowUnix)
		}
	}
	if claimsBody.Nbf != nil {
		if nowUnix < *claimsBody.Nbf {
			result.NotYetValid = true
			result.HumanNotBeforeIn = humanDuration(*claimsBody.Nbf - nowUnix)
		} else {
			result.HumanNotBeforeIn = humanDuration(*claimsBody.Nbf - nowUnix)
		}
	}

	return result, nil
}

// IssuerAllowed reports whether iss is the expected primary issuer or one
// of the additional valid signer keys a trust-chain parent has delegated
// to (operator/account/host additional_keys, per §4.1).
func IssuerAllowed(iss string, primary string, additional []string) bool {
	if iss == primary {
		return true
	}
	for _, k := range additional {
		if iss == k {
			return true
		}
	}
	return false
}

func humanDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < 0 {
		d = -d
	}
	return d.String()
}
