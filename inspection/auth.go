// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import "context"

// Authorization contains the authenticated user for a request.
type Authorization struct {
	User User
}

type authKey int

const authKeyValue authKey = 0

// WithAuth creates new context with Authorization.
func WithAuth(ctx context.Context, auth Authorization) context.Context {
	return context.WithValue(ctx, authKeyValue, auth)
}

// GetAuth gets Authorization from context.
func GetAuth(ctx context.Context) (Authorization, error) {
	value := ctx.Value(authKeyValue)
	if auth, ok := value.(Authorization); ok {
		return auth, nil
	}
	return Authorization{}, ErrUnauthorized.New("missing authorization")
}

// CanAccess reports whether the authorized user may read or write the
// inspection: administrators always, otherwise same organization, assignee
// or creator.
func (auth Authorization) CanAccess(inspection *Inspection) bool {
	if auth.User.IsAdmin() {
		return true
	}
	if inspection.OrganizationID == auth.User.OrganizationID {
		return true
	}
	if inspection.AssignedTo != nil && *inspection.AssignedTo == auth.User.ID {
		return true
	}
	return inspection.CreatedBy == auth.User.ID
}
