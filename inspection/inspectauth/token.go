// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectauth

import (
	"encoding/base64"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default inspectauth errs class.
var Error = errs.Class("inspectauth")

// Token is a signed claims container passed as a bearer credential.
type Token struct {
	Payload   []byte
	Signature []byte
}

// String returns the base64url serialized token.
func (token Token) String() string {
	payload := base64.URLEncoding.EncodeToString(token.Payload)
	signature := base64.URLEncoding.EncodeToString(token.Signature)
	return strings.Join([]string{payload, signature}, ".")
}

// FromBase64URLString parses a base64url serialized token.
func FromBase64URLString(data string) (Token, error) {
	parts := strings.Split(data, ".")
	if len(parts) != 2 {
		return Token{}, Error.New("invalid token format")
	}

	payload, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return Token{}, Error.New("invalid token payload")
	}
	signature, err := base64.URLEncoding.DecodeString(parts[1])
	if err != nil {
		return Token{}, Error.New("invalid token signature")
	}

	return Token{Payload: payload, Signature: signature}, nil
}
