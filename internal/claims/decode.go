package claims

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode parses a token's structure only — header shape, base64, JSON body
// — without checking the signature or time bounds. Any structural problem
// is a hard error per the failure taxonomy in spec.md §7.
func Decode(token string) (*Claims, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, found %d", ErrMalformedToken, len(segs))
	}

	headerBytes, err := b64.DecodeString(segs[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad header base64: %v", ErrMalformedToken, err)
	}
	var header struct {
		Typ string `json:"typ"`
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: bad header json: %v", ErrMalformedToken, err)
	}
	if header.Alg != "Ed25519" {
		return nil, fmt.Errorf("%w: %q", ErrBadAlgorithm, header.Alg)
	}

	bodyBytes, err := b64.DecodeString(segs[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad body base64: %v", ErrMalformedToken, err)
	}
	var body Claims
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil, fmt.Errorf("%w: bad body json: %v", ErrMalformedToken, err)
	}

	if _, err := b64.DecodeString(segs[2]); err != nil {
		return nil, fmt.Errorf("%w: bad signature base64: %v", ErrMalformedToken, err)
	}

	if body.Iss == "" {
		return nil, ErrMissingIssuer
	}
	if body.Sub == "" {
		return nil, ErrMissingSubject
	}

	return &body, nil
}

func segments(token string) []string {
	return strings.Split(token, ".")
}
