// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// GetInspection returns a live inspection the caller may access.
func (service *Service) GetInspection(ctx context.Context, id uuid.UUID) (_ *Inspection, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}
	return service.loadAccessible(ctx, auth, id)
}

// GetAnswer returns an answer row after checking access through its
// inspection.
func (service *Service) GetAnswer(ctx context.Context, id uuid.UUID) (_ *Answer, _ *Inspection, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, nil, err
	}

	answer, err := service.db.Answers().Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	inspection, err := service.loadAccessible(ctx, auth, answer.InspectionID)
	if err != nil {
		return nil, nil, err
	}
	return answer, inspection, nil
}

// ListAnswers returns every answer row of an inspection ordered by
// answeredAt ascending.
func (service *Service) ListAnswers(ctx context.Context, inspectionID uuid.UUID) (_ []Answer, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := service.loadAccessible(ctx, auth, inspectionID); err != nil {
		return nil, err
	}
	return service.db.Answers().ListByInspection(ctx, inspectionID)
}

// ListByScheduleType returns the caller's assigned inspections of the given
// schedule type, newest first.
func (service *Service) ListByScheduleType(ctx context.Context, scheduleType ScheduleType) (_ []Inspection, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}
	return service.db.Inspections().ListAssigned(ctx, auth.User.ID, scheduleType)
}

// CreateInspection inserts a new inspection in DRAFT state.
func (service *Service) CreateInspection(ctx context.Context, inspection *Inspection) (_ *Inspection, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}

	if inspection.Title == "" {
		return nil, ErrValidation.New("title is required")
	}
	if inspection.ID == uuid.Nil {
		inspection.ID = uuid.New()
	}
	if inspection.OrganizationID == uuid.Nil {
		inspection.OrganizationID = auth.User.OrganizationID
	}
	inspection.Status = StatusDraft
	inspection.Progress = 0
	inspection.CreatedBy = auth.User.ID

	return service.db.Inspections().Insert(ctx, inspection)
}

// Assign sets the inspector of an inspection and returns the assignee so
// the caller can send the assignment notice.
func (service *Service) Assign(ctx context.Context, inspectionID, userID uuid.UUID) (_ *Inspection, _ *User, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !auth.User.IsAdmin() {
		return nil, nil, ErrForbidden.New("only administrators may assign inspections")
	}

	inspection, err := service.loadAccessible(ctx, auth, inspectionID)
	if err != nil {
		return nil, nil, err
	}
	assignee, err := service.db.Users().Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	inspection.AssignedTo = &assignee.ID
	inspection.UpdatedBy = &auth.User.ID
	inspection.UpdatedAt = time.Now().UTC()
	if err := service.db.Inspections().Update(ctx, inspection); err != nil {
		return nil, nil, Error.Wrap(err)
	}
	return inspection, assignee, nil
}

// DeleteInspection tombstones the inspection and removes its answer and
// image rows in one transaction. The deleted image rows are returned so the
// caller can remove the stored files.
func (service *Service) DeleteInspection(ctx context.Context, id uuid.UUID) (_ []QuestionImage, err error) {
	defer mon.Task()(&ctx)(&err)

	auth, err := GetAuth(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := service.loadAccessible(ctx, auth, id); err != nil {
		return nil, err
	}

	tx, err := service.db.BeginTx(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, tx.Rollback())
			return
		}
		err = Error.Wrap(tx.Commit())
	}()

	images, err := tx.Images().ListByInspection(ctx, id)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := tx.Images().DeleteByInspection(ctx, id); err != nil {
		return nil, Error.Wrap(err)
	}
	if err := tx.Answers().DeleteByInspection(ctx, id); err != nil {
		return nil, Error.Wrap(err)
	}
	if err := tx.Inspections().Delete(ctx, id); err != nil {
		return nil, Error.Wrap(err)
	}
	return images, nil
}

// GetTemplate returns a template from the catalogue.
func (service *Service) GetTemplate(ctx context.Context, id uuid.UUID) (_ *Template, err error) {
	defer mon.Task()(&ctx)(&err)

	if _, err := GetAuth(ctx); err != nil {
		return nil, err
	}
	return service.db.Templates().Get(ctx, id)
}
