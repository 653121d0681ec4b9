package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keygate/keygate/internal/model"
)

// SignedCodec is an HMAC-SHA256 JWT codec carrying the same session payload
// as Base64Codec. Tokens it decodes are guaranteed to have been minted with
// the same secret; tampering fails validation. Selected by configuring a
// signing secret.
type SignedCodec struct {
	secret []byte
}

// NewSignedCodec returns a codec that signs tokens with the given secret.
func NewSignedCodec(secret string) *SignedCodec {
	return &SignedCodec{secret: []byte(secret)}
}

type sessionClaims struct {
	Name      string `json:"name"`
	ToolID    string `json:"toolId"`
	Timestamp int64  `json:"timestamp"`
	jwt.RegisteredClaims
}

func (c *SignedCodec) Encode(p model.SessionPayload) (string, error) {
	claims := sessionClaims{
		Name:      p.Name,
		ToolID:    p.ToolID,
		Timestamp: p.Timestamp,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(p.IssuedAt()),
			Issuer:   "keygate",
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.secret)
}

func (c *SignedCodec) Decode(token string) (model.SessionPayload, error) {
	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return model.SessionPayload{}, ErrMalformedToken
	}
	if claims.Name == "" || claims.ToolID == "" || claims.Timestamp == 0 {
		return model.SessionPayload{}, ErrMissingFields
	}
	return model.SessionPayload{
		Name:      claims.Name,
		ToolID:    claims.ToolID,
		Timestamp: claims.Timestamp,
	}, nil
}
