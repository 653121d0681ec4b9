// Package token encodes and decodes session payloads. The default codec is
// reversible base64 over JSON: it is obfuscation, not a MAC or signature,
// and anyone holding a token can decode or forge one. Callers that need
// integrity swap in SignedCodec without changing call sites.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keygate/keygate/internal/model"
)

var (
	// ErrMalformedToken is returned when a token is not decodable at all.
	ErrMalformedToken = errors.New("malformed session token")
	// ErrMissingFields is returned when a token decodes but lacks required
	// payload fields.
	ErrMissingFields = errors.New("session token missing required fields")
)

// Codec converts session payloads to and from their wire form.
type Codec interface {
	Encode(p model.SessionPayload) (string, error)
	Decode(token string) (model.SessionPayload, error)
}

// Base64Codec serializes the payload to JSON and base64url-encodes it.
// Deterministic, no randomness, no integrity guarantee.
type Base64Codec struct{}

// NewBase64Codec returns the default reversible codec.
func NewBase64Codec() Base64Codec {
	return Base64Codec{}
}

func (Base64Codec) Encode(p model.SessionPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode session payload: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (Base64Codec) Decode(token string) (model.SessionPayload, error) {
	var p model.SessionPayload
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tolerate padded and standard-alphabet variants of the same data.
		raw, err = base64.StdEncoding.DecodeString(token)
		if err != nil {
			return p, ErrMalformedToken
		}
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, ErrMalformedToken
	}
	if p.Name == "" || p.ToolID == "" || p.Timestamp == 0 {
		return model.SessionPayload{}, ErrMissingFields
	}
	return p, nil
}
