// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/scaleinspect/inspectd/inspection"
)

type sites struct {
	base
}

func (sites *sites) Get(ctx context.Context, id uuid.UUID) (*inspection.Site, error) {
	row := sites.db.QueryRowContext(ctx, sites.rebind(`
		SELECT id, organization_id, name, location, created_at
		FROM sites WHERE id = ?`), id.String())

	var site inspection.Site
	var siteID, orgID string
	err := row.Scan(&siteID, &orgID, &site.Name, &site.Location, &site.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("site not found")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if site.ID, err = parseUUID(siteID); err != nil {
		return nil, err
	}
	if site.OrganizationID, err = parseUUID(orgID); err != nil {
		return nil, err
	}
	return &site, nil
}

func (sites *sites) Insert(ctx context.Context, site *inspection.Site) (*inspection.Site, error) {
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	site.CreatedAt = time.Now().UTC()

	_, err := sites.db.ExecContext(ctx, sites.rebind(`
		INSERT INTO sites ( id, organization_id, name, location, created_at )
		VALUES ( ?, ?, ?, ?, ? )`),
		site.ID.String(), site.OrganizationID.String(), site.Name, site.Location, site.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return site, nil
}

type contracts struct {
	base
}

func (contracts *contracts) Get(ctx context.Context, id uuid.UUID) (*inspection.Contract, error) {
	row := contracts.db.QueryRowContext(ctx, contracts.rebind(`
		SELECT id, organization_id, number, created_at
		FROM contracts WHERE id = ?`), id.String())

	var contract inspection.Contract
	var contractID, orgID string
	err := row.Scan(&contractID, &orgID, &contract.Number, &contract.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("contract not found")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if contract.ID, err = parseUUID(contractID); err != nil {
		return nil, err
	}
	if contract.OrganizationID, err = parseUUID(orgID); err != nil {
		return nil, err
	}
	return &contract, nil
}

func (contracts *contracts) Insert(ctx context.Context, contract *inspection.Contract) (*inspection.Contract, error) {
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	contract.CreatedAt = time.Now().UTC()

	_, err := contracts.db.ExecContext(ctx, contracts.rebind(`
		INSERT INTO contracts ( id, organization_id, number, created_at )
		VALUES ( ?, ?, ?, ? )`),
		contract.ID.String(), contract.OrganizationID.String(), contract.Number, contract.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return contract, nil
}

type devices struct {
	base
}

func (devices *devices) Get(ctx context.Context, id uuid.UUID) (*inspection.Device, error) {
	row := devices.db.QueryRowContext(ctx, devices.rebind(`
		SELECT id, organization_id, model_id, site_id, serial_number, name, created_at
		FROM devices WHERE id = ?`), id.String())

	var device inspection.Device
	var deviceID, orgID string
	var modelID, siteID sql.NullString
	err := row.Scan(&deviceID, &orgID, &modelID, &siteID, &device.SerialNumber, &device.Name, &device.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("device not found")
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if device.ID, err = parseUUID(deviceID); err != nil {
		return nil, err
	}
	if device.OrganizationID, err = parseUUID(orgID); err != nil {
		return nil, err
	}
	if device.ModelID, err = parseNullUUID(modelID); err != nil {
		return nil, err
	}
	if device.SiteID, err = parseNullUUID(siteID); err != nil {
		return nil, err
	}
	return &device, nil
}

func (devices *devices) Insert(ctx context.Context, device *inspection.Device) (*inspection.Device, error) {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	device.CreatedAt = time.Now().UTC()

	_, err := devices.db.ExecContext(ctx, devices.rebind(`
		INSERT INTO devices ( id, organization_id, model_id, site_id, serial_number, name, created_at )
		VALUES ( ?, ?, ?, ?, ?, ?, ? )`),
		device.ID.String(), device.OrganizationID.String(),
		nullUUIDValue(device.ModelID), nullUUIDValue(device.SiteID),
		device.SerialNumber, device.Name, device.CreatedAt)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return device, nil
}
