// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspectdb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scaleinspect/inspectd/inspectd/inspectdb"
	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/ordered"
	"github.com/scaleinspect/inspectd/internal/testcontext"
	"github.com/scaleinspect/inspectd/internal/testrand"
)

type fixture struct {
	db         *inspectdb.DB
	org        *inspection.Organization
	user       *inspection.User
	device     *inspection.Device
	inspection *inspection.Inspection
}

func setup(t *testing.T, ctx *testcontext.Context) *fixture {
	db, err := inspectdb.Open(zaptest.NewLogger(t), "sqlite3://"+ctx.File("inspectd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	require.NoError(t, db.MigrateToLatest(ctx))

	org, err := db.Organizations().Insert(ctx, &inspection.Organization{
		ID:   testrand.UUID(),
		Name: "Тээвэр ХХК",
		Code: "TVR",
	})
	require.NoError(t, err)

	user, err := db.Users().Insert(ctx, &inspection.User{
		ID:             testrand.UUID(),
		OrganizationID: org.ID,
		FullName:       "Бат",
		Email:          "bat@example.test",
		PasswordHash:   testrand.BytesN(32),
		Role:           inspection.RoleInspector,
	})
	require.NoError(t, err)

	device, err := db.Devices().Insert(ctx, &inspection.Device{
		ID:             testrand.UUID(),
		OrganizationID: org.ID,
		SerialNumber:   "SC-100",
		Name:           "60 тонн авто жин",
	})
	require.NoError(t, err)

	record, err := db.Inspections().Insert(ctx, &inspection.Inspection{
		ID:             testrand.UUID(),
		OrganizationID: org.ID,
		DeviceID:       device.ID,
		Title:          "Ээлжит үзлэг",
		Type:           inspection.TypeInspection,
		ScheduleType:   inspection.ScheduleScheduled,
		Status:         inspection.StatusDraft,
		AssignedTo:     &user.ID,
		CreatedBy:      user.ID,
	})
	require.NoError(t, err)

	return &fixture{db: db, org: org, user: user, device: device, inspection: record}
}

func TestOrganizationsAndUsers(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	org, err := fx.db.Organizations().GetByCode(ctx, "TVR")
	require.NoError(t, err)
	assert.Equal(t, fx.org.ID, org.ID)

	_, err = fx.db.Organizations().Get(ctx, testrand.UUID())
	require.True(t, inspection.ErrNoRecord.Has(err))

	// email lookup is case insensitive through lowering on insert
	user, err := fx.db.Users().GetByEmail(ctx, "BAT@example.test")
	require.NoError(t, err)
	assert.Equal(t, fx.user.ID, user.ID)
	assert.Equal(t, fx.user.PasswordHash, user.PasswordHash)
	assert.Equal(t, inspection.RoleInspector, user.Role)

	_, err = fx.db.Users().Insert(ctx, &inspection.User{
		OrganizationID: fx.org.ID,
		FullName:       "Дорж",
		Email:          "Bat@Example.Test",
		PasswordHash:   testrand.BytesN(32),
		Role:           inspection.RoleInspector,
	})
	require.True(t, inspection.ErrValidation.Has(err), "duplicate email must be rejected")
}

func TestAnswersOrdering(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	base := time.Now().UTC().Add(-time.Hour)
	for i, section := range []string{"exterior", "indicator", "jbox"} {
		doc := ordered.NewDoc()
		doc.Set(section, map[string]interface{}{})
		_, err := fx.db.Answers().Insert(ctx, &inspection.Answer{
			InspectionID: fx.inspection.ID,
			Answers:      doc,
			AnsweredBy:   fx.user.ID,
			AnsweredAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	rows, err := fx.db.Answers().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Answers.Has("exterior"))
	assert.True(t, rows[1].Answers.Has("indicator"))
	assert.True(t, rows[2].Answers.Has("jbox"))

	require.NoError(t, fx.db.Answers().DeleteByInspection(ctx, fx.inspection.ID))
	rows, err = fx.db.Answers().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestImageSlotUniqueness(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	answer, err := fx.db.Answers().Insert(ctx, &inspection.Answer{
		InspectionID: fx.inspection.ID,
		Answers:      ordered.NewDoc(),
		AnsweredBy:   fx.user.ID,
	})
	require.NoError(t, err)

	first, err := fx.db.Images().Insert(ctx, &inspection.QuestionImage{
		AnswerID:   answer.ID,
		FieldID:    "platform_plate",
		Section:    "exterior",
		ImageOrder: 1,
		ImageURL:   "http://localhost/ftp_images/a.jpg",
		FileName:   "a.jpg",
		UploadedBy: fx.user.ID,
	})
	require.NoError(t, err)

	_, err = fx.db.Images().Insert(ctx, &inspection.QuestionImage{
		AnswerID:   answer.ID,
		FieldID:    "platform_plate",
		Section:    "exterior",
		ImageOrder: 1,
		ImageURL:   "http://localhost/ftp_images/b.jpg",
		FileName:   "b.jpg",
		UploadedBy: fx.user.ID,
	})
	require.True(t, inspection.ErrImageExists.Has(err))

	occupant, err := fx.db.Images().GetBySlot(ctx, answer.ID, "platform_plate", 1)
	require.NoError(t, err)
	require.NotNil(t, occupant)
	assert.Equal(t, first.ID, occupant.ID)

	free, err := fx.db.Images().GetBySlot(ctx, answer.ID, "platform_plate", 2)
	require.NoError(t, err)
	assert.Nil(t, free)

	byInspection, err := fx.db.Images().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	require.Len(t, byInspection, 1)
	assert.Equal(t, "a.jpg", byInspection[0].FileName)

	require.NoError(t, fx.db.Images().DeleteByInspection(ctx, fx.inspection.ID))
	byInspection, err = fx.db.Images().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	assert.Empty(t, byInspection)
}

func TestListAssignedAndDelete(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	assigned, err := fx.db.Inspections().ListAssigned(ctx, fx.user.ID, inspection.ScheduleScheduled)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, fx.inspection.ID, assigned[0].ID)

	assigned, err = fx.db.Inspections().ListAssigned(ctx, fx.user.ID, inspection.ScheduleDaily)
	require.NoError(t, err)
	assert.Empty(t, assigned)

	require.NoError(t, fx.db.Inspections().Delete(ctx, fx.inspection.ID))

	record, err := fx.db.Inspections().Get(ctx, fx.inspection.ID)
	require.NoError(t, err)
	assert.NotNil(t, record.DeletedAt, "delete is a tombstone")

	assigned, err = fx.db.Inspections().ListAssigned(ctx, fx.user.ID, inspection.ScheduleScheduled)
	require.NoError(t, err)
	assert.Empty(t, assigned)
}

func TestUpdateInspection(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	record := fx.inspection
	record.Status = inspection.StatusInProgress
	record.Progress = 33
	record.UpdatedBy = &fx.user.ID
	require.NoError(t, fx.db.Inspections().Update(ctx, record))

	stored, err := fx.db.Inspections().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, inspection.StatusInProgress, stored.Status)
	assert.Equal(t, 33, stored.Progress)
	require.NotNil(t, stored.UpdatedBy)
	assert.Equal(t, fx.user.ID, *stored.UpdatedBy)
}

func TestCompletionKeepsQuestionImages(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	service, err := inspection.NewService(zaptest.NewLogger(t), fx.db)
	require.NoError(t, err)
	authCtx := inspection.WithAuth(ctx, inspection.Authorization{User: *fx.user})

	sections := inspection.DefaultCatalogue().SectionKeys()
	var first inspection.SectionResult
	for i, section := range sections[:len(sections)-1] {
		doc := ordered.NewDoc()
		field := ordered.NewDoc()
		field.Set("status", "ok")
		doc.Set("some_field", field)

		result, err := service.SubmitSection(authCtx, inspection.SectionWrite{
			InspectionID:   fx.inspection.ID,
			Section:        section,
			IsFirstSection: i == 0,
			SectionStatus:  inspection.SectionCompleted,
			Payload:        doc,
		})
		require.NoError(t, err)
		if i == 0 {
			first = result
		}
	}

	_, err = service.RecordImage(authCtx, &inspection.QuestionImage{
		AnswerID:   first.AnswerID,
		FieldID:    "platform_plate",
		Section:    "exterior",
		ImageOrder: 1,
		ImageURL:   "http://localhost/ftp_images/plate.jpg",
		FileName:   "plate.jpg",
	})
	require.NoError(t, err)

	final := ordered.NewDoc()
	field := ordered.NewDoc()
	field.Set("status", "ok")
	final.Set("platform", field)

	result, err := service.SubmitSection(authCtx, inspection.SectionWrite{
		InspectionID:  fx.inspection.ID,
		Section:       sections[len(sections)-1],
		SectionStatus: inspection.SectionCompleted,
		Payload:       final,
	})
	require.NoError(t, err)
	require.True(t, result.IsCompletion)

	rows, err := fx.db.Answers().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, result.AnswerID, rows[0].ID)

	// the foreign key cascade on the removed rows must not take the image
	images, err := fx.db.Images().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "plate.jpg", images[0].FileName)
	assert.Equal(t, result.AnswerID, images[0].AnswerID)

	byAnswer, err := fx.db.Images().ListByAnswer(ctx, result.AnswerID)
	require.NoError(t, err)
	assert.Len(t, byAnswer, 1)
}

func TestTransactionRollback(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	fx := setup(t, ctx)

	tx, err := fx.db.BeginTx(ctx)
	require.NoError(t, err)

	_, err = tx.Answers().Insert(ctx, &inspection.Answer{
		InspectionID: fx.inspection.ID,
		Answers:      ordered.NewDoc(),
		AnsweredBy:   fx.user.ID,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	rows, err := fx.db.Answers().ListByInspection(ctx, fx.inspection.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
