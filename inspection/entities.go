// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant owning sites, contracts, devices and users.
type Organization struct {
	ID           uuid.UUID
	Name         string
	Code         string
	ContactName  string
	ContactPhone string
	ContactEmail string
	CreatedAt    time.Time
}

// Site is a physical location where devices are installed.
type Site struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Location       string
	CreatedAt      time.Time
}

// Contract is a service contract between the operator and an organization.
type Contract struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Number         string
	CreatedAt      time.Time
}

// DeviceModel describes a weighing scale model.
type DeviceModel struct {
	ID           uuid.UUID
	Name         string
	Manufacturer string
	CreatedAt    time.Time
}

// Device is a weighing scale registered to an organization.
type Device struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ModelID        *uuid.UUID
	SiteID         *uuid.UUID
	SerialNumber   string
	Name           string
	CreatedAt      time.Time
}

// Role determines the level of access of a user.
type Role string

// User roles.
const (
	RoleInspector     Role = "INSPECTOR"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// User is an inspector or administrator account.
type User struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	FullName       string
	Email          string
	PasswordHash   []byte
	Role           Role
	CreatedAt      time.Time
}

// IsAdmin reports whether the user has administrator access.
func (user *User) IsAdmin() bool {
	return user.Role == RoleAdministrator
}
