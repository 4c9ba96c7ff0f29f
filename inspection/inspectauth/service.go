// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectauth

import (
	"crypto/subtle"
	"time"

	"github.com/zeebo/errs"
)

// ErrTokenExpired is returned for tokens past their expiration.
var ErrTokenExpired = errs.Class("token expired")

// TokenService issues and checks bearer tokens.
type TokenService struct {
	signer Signer
	ttl    time.Duration
}

// NewTokenService creates a token service signing with the given secret.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{signer: &Hmac{Secret: secret}, ttl: ttl}
}

// IssueToken signs the claims, stamping the expiration from the configured
// lifetime when the claims carry none.
func (service *TokenService) IssueToken(claims Claims) (string, error) {
	if claims.Expiration.IsZero() {
		claims.Expiration = time.Now().UTC().Add(service.ttl)
	}

	payload, err := claims.JSON()
	if err != nil {
		return "", Error.Wrap(err)
	}

	token := Token{Payload: payload}
	if err := signToken(&token, service.signer); err != nil {
		return "", Error.Wrap(err)
	}
	return token.String(), nil
}

// CheckToken verifies the signature and expiration and returns the claims.
func (service *TokenService) CheckToken(data string) (*Claims, error) {
	token, err := FromBase64URLString(data)
	if err != nil {
		return nil, err
	}

	expected := Token{Payload: token.Payload}
	if err := signToken(&expected, service.signer); err != nil {
		return nil, Error.Wrap(err)
	}
	if subtle.ConstantTimeCompare(expected.Signature, token.Signature) != 1 {
		return nil, Error.New("incorrect signature")
	}

	claims, err := FromJSON(token.Payload)
	if err != nil {
		return nil, err
	}
	if !claims.Expiration.IsZero() && claims.Expiration.Before(time.Now()) {
		return nil, ErrTokenExpired.New("token expired at %s", claims.Expiration)
	}
	return claims, nil
}
