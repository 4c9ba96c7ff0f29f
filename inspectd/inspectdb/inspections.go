// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/scaleinspect/inspectd/inspection"
)

type inspections struct {
	base
}

const inspectionColumns = `id, organization_id, device_id, site_id, contract_id, template_id,
	title, type, schedule_type, status, progress,
	assigned_to, created_by, updated_by,
	scheduled_for, completed_at, created_at, updated_at, deleted_at`

func (inspections *inspections) Get(ctx context.Context, id uuid.UUID) (*inspection.Inspection, error) {
	row := inspections.db.QueryRowContext(ctx, inspections.rebind(`
		SELECT `+inspectionColumns+`
		FROM inspections WHERE id = ?`), id.String())

	record, err := scanInspection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inspection.ErrNoRecord.New("inspection not found")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInspection(row scanner) (*inspection.Inspection, error) {
	var record inspection.Inspection
	var id, orgID, deviceID, createdBy, typ, scheduleType, status string
	var siteID, contractID, templateID, assignedTo, updatedBy sql.NullString
	var scheduledFor, completedAt, deletedAt sql.NullTime

	err := row.Scan(&id, &orgID, &deviceID, &siteID, &contractID, &templateID,
		&record.Title, &typ, &scheduleType, &status, &record.Progress,
		&assignedTo, &createdBy, &updatedBy,
		&scheduledFor, &completedAt, &record.CreatedAt, &record.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, Error.Wrap(err)
	}

	if record.ID, err = parseUUID(id); err != nil {
		return nil, err
	}
	if record.OrganizationID, err = parseUUID(orgID); err != nil {
		return nil, err
	}
	if record.DeviceID, err = parseUUID(deviceID); err != nil {
		return nil, err
	}
	if record.CreatedBy, err = parseUUID(createdBy); err != nil {
		return nil, err
	}
	if record.SiteID, err = parseNullUUID(siteID); err != nil {
		return nil, err
	}
	if record.ContractID, err = parseNullUUID(contractID); err != nil {
		return nil, err
	}
	if record.TemplateID, err = parseNullUUID(templateID); err != nil {
		return nil, err
	}
	if record.AssignedTo, err = parseNullUUID(assignedTo); err != nil {
		return nil, err
	}
	if record.UpdatedBy, err = parseNullUUID(updatedBy); err != nil {
		return nil, err
	}

	record.Type = inspection.Type(typ)
	record.ScheduleType = inspection.ScheduleType(scheduleType)
	record.Status = inspection.Status(status)
	record.ScheduledFor = fromNullTime(scheduledFor)
	record.CompletedAt = fromNullTime(completedAt)
	record.DeletedAt = fromNullTime(deletedAt)
	return &record, nil
}

func (inspections *inspections) Insert(ctx context.Context, record *inspection.Inspection) (*inspection.Inspection, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	_, err := inspections.db.ExecContext(ctx, inspections.rebind(`
		INSERT INTO inspections ( `+inspectionColumns+` )
		VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? )`),
		record.ID.String(), record.OrganizationID.String(), record.DeviceID.String(),
		nullUUIDValue(record.SiteID), nullUUIDValue(record.ContractID), nullUUIDValue(record.TemplateID),
		record.Title, string(record.Type), string(record.ScheduleType), string(record.Status), record.Progress,
		nullUUIDValue(record.AssignedTo), record.CreatedBy.String(), nullUUIDValue(record.UpdatedBy),
		nullTimeValue(record.ScheduledFor), nullTimeValue(record.CompletedAt),
		record.CreatedAt, record.UpdatedAt, nullTimeValue(record.DeletedAt))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return record, nil
}

func (inspections *inspections) Update(ctx context.Context, record *inspection.Inspection) error {
	record.UpdatedAt = time.Now().UTC()

	result, err := inspections.db.ExecContext(ctx, inspections.rebind(`
		UPDATE inspections
		SET status = ?, progress = ?, assigned_to = ?, updated_by = ?,
			scheduled_for = ?, completed_at = ?, updated_at = ?
		WHERE id = ?`),
		string(record.Status), record.Progress,
		nullUUIDValue(record.AssignedTo), nullUUIDValue(record.UpdatedBy),
		nullTimeValue(record.ScheduledFor), nullTimeValue(record.CompletedAt),
		record.UpdatedAt, record.ID.String())
	if err != nil {
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return inspection.ErrNoRecord.New("inspection %s not found", record.ID)
	}
	return nil
}

func (inspections *inspections) ListAssigned(ctx context.Context, userID uuid.UUID, scheduleType inspection.ScheduleType) (_ []inspection.Inspection, err error) {
	rows, err := inspections.db.QueryContext(ctx, inspections.rebind(`
		SELECT `+inspectionColumns+`
		FROM inspections
		WHERE assigned_to = ?
			AND schedule_type = ?
			AND status IN ( 'DRAFT', 'IN_PROGRESS', 'SUBMITTED' )
			AND deleted_at IS NULL
		ORDER BY created_at DESC`),
		userID.String(), string(scheduleType))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var list []inspection.Inspection
	for rows.Next() {
		record, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *record)
	}
	return list, Error.Wrap(rows.Err())
}

func (inspections *inspections) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := inspections.db.ExecContext(ctx, inspections.rebind(`
		UPDATE inspections SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`),
		time.Now().UTC(), id.String())
	return Error.Wrap(err)
}
