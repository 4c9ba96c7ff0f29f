// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectauth

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Claims is the token payload: who the bearer is and until when.
type Claims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"org_id"`
	FullName       string    `json:"full_name,omitempty"`
	Admin          bool      `json:"admin,omitempty"`
	Expiration     time.Time `json:"expires,omitempty"`
}

// JSON returns the json serialized claims.
func (claims *Claims) JSON() ([]byte, error) {
	return json.Marshal(claims)
}

// FromJSON parses claims from their json serialization.
func FromJSON(data []byte) (*Claims, error) {
	claims := new(Claims)
	if err := json.Unmarshal(data, claims); err != nil {
		return nil, Error.Wrap(err)
	}
	return claims, nil
}
