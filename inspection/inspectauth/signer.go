// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectauth

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Signer creates signatures for token payloads.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Hmac is a HMAC-SHA256 implementation of Signer.
type Hmac struct {
	Secret []byte
}

// Sign implements Signer.
func (a *Hmac) Sign(data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, a.Secret)
	_, err := mac.Write(data)
	if err != nil {
		return nil, err
	}
	return mac.Sum(nil), nil
}

// signToken signs the token payload in place.
func signToken(token *Token, signer Signer) error {
	signature, err := signer.Sign(token.Payload)
	if err != nil {
		return err
	}
	token.Signature = signature
	return nil
}
