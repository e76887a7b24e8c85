package claims

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// b64 is the base64url-no-pad encoding the lattice JWT dialect uses for all
// three segments.
var b64 = base64.RawURLEncoding

// Mint builds and signs a lattice JWT for the given subject public key,
// embedding role-specific metadata. notBefore/expires are Unix seconds;
// pass nil for either to omit them.
func Mint(issuer *KeyPair, subjectPublicKey string, wascap *Wascap, notBefore, expires *int64, now int64) (string, error) {
	if issuer == nil {
		return "", fmt.Errorf("claims: mint: nil issuer keypair")
	}
	if subjectPublicKey == "" {
		return "", ErrMissingSubject
	}
	rev := MinModuleHashRevision
	body := Claims{
		Jti:            uuid.NewString(),
		Iat:            now,
		Iss:            issuer.PublicKeyString(),
		Sub:            subjectPublicKey,
		Exp:            expires,
		Nbf:            notBefore,
		Wascap:         wascap,
		WascapRevision: &rev,
	}
	return encode(&body, issuer.Private)
}

func encode(body *Claims, priv ed25519.PrivateKey) (string, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("claims: marshal body: %w", err)
	}
	headerSeg := b64.EncodeToString([]byte(jwtHeader))
	bodySeg := b64.EncodeToString(bodyJSON)
	signingString := headerSeg + "." + bodySeg

	sigBytes, err := jwt.SigningMethodEdDSA.Sign(signingString, priv)
	if err != nil {
		return "", fmt.Errorf("claims: sign: %w", err)
	}
	sigSeg := b64.EncodeToString(sigBytes)
	return signingString + "." + sigSeg, nil
}
