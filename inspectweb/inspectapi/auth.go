// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/inspectauth"
)

// Auth issues bearer tokens against stored credentials.
type Auth struct {
	log    *zap.Logger
	users  inspection.Users
	tokens *inspectauth.TokenService
}

// NewAuth creates the auth handler.
func NewAuth(log *zap.Logger, users inspection.Users, tokens *inspectauth.TokenService) *Auth {
	return &Auth{log: log, users: users, tokens: tokens}
}

// Token authenticates email and password and returns a signed bearer token.
func (a *Auth) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err = json.NewDecoder(r.Body).Decode(&request); err != nil {
		ServeError(a.log, w, inspection.ErrValidation.New("malformed request body"))
		return
	}
	if request.Email == "" || request.Password == "" {
		ServeError(a.log, w, inspection.ErrValidation.New("email and password are required"))
		return
	}

	user, err := a.users.GetByEmail(ctx, request.Email)
	if err != nil {
		ServeError(a.log, w, inspection.ErrUnauthorized.New("invalid credentials"))
		return
	}
	if err = bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(request.Password)); err != nil {
		ServeError(a.log, w, inspection.ErrUnauthorized.New("invalid credentials"))
		return
	}

	token, err := a.tokens.IssueToken(inspectauth.Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		FullName:       user.FullName,
		Admin:          user.IsAdmin(),
	})
	if err != nil {
		ServeError(a.log, w, Error.Wrap(err))
		return
	}

	sendData(w, http.StatusOK, "authenticated", map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"fullName": user.FullName,
			"email":    user.Email,
			"role":     user.Role,
		},
	})
}
