package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// signatureLength is the number of hex characters kept from the digest.
const signatureLength = 16

// Signature hashes an operation name and its parameters. Nil parameters are
// dropped and keys are serialized in sorted order, so logically equal calls
// produce the same signature.
func Signature(op string, params map[string]any) (string, error) {
	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		cleaned[k] = v
	}
	payload, err := json.Marshal(map[string]any{
		"tool":   op,
		"params": cleaned,
	})
	if err != nil {
		return "", fmt.Errorf("dedup: encode signature: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:signatureLength], nil
}

// ParamsOf converts a JSON-tagged struct into a parameter map. Fields tagged
// omitempty and left empty do not contribute to the signature.
func ParamsOf(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dedup: encode params: %w", err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("dedup: params must be an object: %w", err)
	}
	return params, nil
}
