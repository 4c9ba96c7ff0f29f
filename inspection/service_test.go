// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

package inspection_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scaleinspect/inspectd/inspection"
	"github.com/scaleinspect/inspectd/inspection/ordered"
)

// memDB is an in-memory inspection.DB for service tests.
type memDB struct {
	orgs        map[uuid.UUID]*inspection.Organization
	users       map[uuid.UUID]*inspection.User
	templates   map[uuid.UUID]*inspection.Template
	inspections map[uuid.UUID]*inspection.Inspection
	answers     map[uuid.UUID]*inspection.Answer
	images      map[uuid.UUID]*inspection.QuestionImage
}

func newMemDB() *memDB {
	return &memDB{
		orgs:        map[uuid.UUID]*inspection.Organization{},
		users:       map[uuid.UUID]*inspection.User{},
		templates:   map[uuid.UUID]*inspection.Template{},
		inspections: map[uuid.UUID]*inspection.Inspection{},
		answers:     map[uuid.UUID]*inspection.Answer{},
		images:      map[uuid.UUID]*inspection.QuestionImage{},
	}
}

func (db *memDB) Organizations() inspection.Organizations { return (*memOrgs)(db) }
func (db *memDB) Users() inspection.Users                 { return (*memUsers)(db) }
func (db *memDB) Devices() inspection.Devices             { return (*memDevices)(db) }
func (db *memDB) Sites() inspection.Sites                 { return (*memSites)(db) }
func (db *memDB) Contracts() inspection.Contracts         { return (*memContracts)(db) }
func (db *memDB) Templates() inspection.Templates         { return (*memTemplates)(db) }
func (db *memDB) Inspections() inspection.Inspections     { return (*memInspections)(db) }
func (db *memDB) Answers() inspection.Answers             { return (*memAnswers)(db) }
func (db *memDB) Images() inspection.Images               { return (*memImages)(db) }

func (db *memDB) BeginTx(ctx context.Context) (inspection.DBTx, error) {
	return &memTx{db: db}, nil
}

type memTx struct{ db *memDB }

func (tx *memTx) Inspections() inspection.Inspections { return tx.db.Inspections() }
func (tx *memTx) Answers() inspection.Answers         { return tx.db.Answers() }
func (tx *memTx) Images() inspection.Images           { return tx.db.Images() }
func (tx *memTx) Commit() error                       { return nil }
func (tx *memTx) Rollback() error                     { return nil }

type memOrgs memDB

func (m *memOrgs) Get(ctx context.Context, id uuid.UUID) (*inspection.Organization, error) {
	if org, ok := m.orgs[id]; ok {
		return org, nil
	}
	return nil, inspection.ErrNoRecord.New("organization not found")
}
func (m *memOrgs) GetByCode(ctx context.Context, code string) (*inspection.Organization, error) {
	for _, org := range m.orgs {
		if org.Code == code {
			return org, nil
		}
	}
	return nil, inspection.ErrNoRecord.New("organization not found")
}
func (m *memOrgs) Insert(ctx context.Context, org *inspection.Organization) (*inspection.Organization, error) {
	m.orgs[org.ID] = org
	return org, nil
}

type memUsers memDB

func (m *memUsers) Get(ctx context.Context, id uuid.UUID) (*inspection.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, inspection.ErrNoRecord.New("user not found")
}
func (m *memUsers) GetByEmail(ctx context.Context, email string) (*inspection.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, inspection.ErrNoRecord.New("user not found")
}
func (m *memUsers) Insert(ctx context.Context, user *inspection.User) (*inspection.User, error) {
	m.users[user.ID] = user
	return user, nil
}

type memDevices memDB

func (m *memDevices) Get(ctx context.Context, id uuid.UUID) (*inspection.Device, error) {
	return nil, inspection.ErrNoRecord.New("device not found")
}
func (m *memDevices) Insert(ctx context.Context, device *inspection.Device) (*inspection.Device, error) {
	return device, nil
}

type memSites memDB

func (m *memSites) Get(ctx context.Context, id uuid.UUID) (*inspection.Site, error) {
	return nil, inspection.ErrNoRecord.New("site not found")
}
func (m *memSites) Insert(ctx context.Context, site *inspection.Site) (*inspection.Site, error) {
	return site, nil
}

type memContracts memDB

func (m *memContracts) Get(ctx context.Context, id uuid.UUID) (*inspection.Contract, error) {
	return nil, inspection.ErrNoRecord.New("contract not found")
}
func (m *memContracts) Insert(ctx context.Context, contract *inspection.Contract) (*inspection.Contract, error) {
	return contract, nil
}

type memTemplates memDB

func (m *memTemplates) Get(ctx context.Context, id uuid.UUID) (*inspection.Template, error) {
	if template, ok := m.templates[id]; ok {
		return template, nil
	}
	return nil, inspection.ErrNoRecord.New("template not found")
}
func (m *memTemplates) Insert(ctx context.Context, template *inspection.Template) (*inspection.Template, error) {
	m.templates[template.ID] = template
	return template, nil
}

type memInspections memDB

func (m *memInspections) Get(ctx context.Context, id uuid.UUID) (*inspection.Inspection, error) {
	if record, ok := m.inspections[id]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, inspection.ErrNoRecord.New("inspection not found")
}
func (m *memInspections) Insert(ctx context.Context, record *inspection.Inspection) (*inspection.Inspection, error) {
	m.inspections[record.ID] = record
	return record, nil
}
func (m *memInspections) Update(ctx context.Context, record *inspection.Inspection) error {
	if _, ok := m.inspections[record.ID]; !ok {
		return inspection.ErrNoRecord.New("inspection not found")
	}
	copied := *record
	m.inspections[record.ID] = &copied
	return nil
}
func (m *memInspections) ListAssigned(ctx context.Context, userID uuid.UUID, scheduleType inspection.ScheduleType) ([]inspection.Inspection, error) {
	var out []inspection.Inspection
	for _, record := range m.inspections {
		if record.DeletedAt != nil || record.AssignedTo == nil || *record.AssignedTo != userID {
			continue
		}
		if record.ScheduleType != scheduleType {
			continue
		}
		switch record.Status {
		case inspection.StatusDraft, inspection.StatusInProgress, inspection.StatusSubmitted:
			out = append(out, *record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
func (m *memInspections) Delete(ctx context.Context, id uuid.UUID) error {
	record, ok := m.inspections[id]
	if !ok {
		return inspection.ErrNoRecord.New("inspection not found")
	}
	now := time.Now()
	record.DeletedAt = &now
	return nil
}

type memAnswers memDB

func (m *memAnswers) Get(ctx context.Context, id uuid.UUID) (*inspection.Answer, error) {
	if answer, ok := m.answers[id]; ok {
		return answer, nil
	}
	return nil, inspection.ErrNoRecord.New("answer not found")
}
func (m *memAnswers) ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]inspection.Answer, error) {
	var out []inspection.Answer
	for _, answer := range m.answers {
		if answer.InspectionID == inspectionID {
			out = append(out, *answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt.Before(out[j].AnsweredAt) })
	return out, nil
}
func (m *memAnswers) Insert(ctx context.Context, answer *inspection.Answer) (*inspection.Answer, error) {
	copied := *answer
	m.answers[answer.ID] = &copied
	return answer, nil
}
func (m *memAnswers) Update(ctx context.Context, answer *inspection.Answer) error {
	if _, ok := m.answers[answer.ID]; !ok {
		return inspection.ErrNoRecord.New("answer not found")
	}
	copied := *answer
	m.answers[answer.ID] = &copied
	return nil
}
func (m *memAnswers) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.answers, id)
	return nil
}
func (m *memAnswers) DeleteByInspection(ctx context.Context, inspectionID uuid.UUID) error {
	for id, answer := range m.answers {
		if answer.InspectionID == inspectionID {
			delete(m.answers, id)
		}
	}
	return nil
}

type memImages memDB

func (m *memImages) Get(ctx context.Context, id uuid.UUID) (*inspection.QuestionImage, error) {
	if image, ok := m.images[id]; ok {
		return image, nil
	}
	return nil, inspection.ErrNoRecord.New("image not found")
}
func (m *memImages) GetBySlot(ctx context.Context, answerID uuid.UUID, fieldID string, order int) (*inspection.QuestionImage, error) {
	for _, image := range m.images {
		if image.AnswerID == answerID && image.FieldID == fieldID && image.ImageOrder == order {
			return image, nil
		}
	}
	return nil, nil
}
func (m *memImages) Insert(ctx context.Context, image *inspection.QuestionImage) (*inspection.QuestionImage, error) {
	existing, _ := m.GetBySlot(ctx, image.AnswerID, image.FieldID, image.ImageOrder)
	if existing != nil {
		return nil, inspection.ErrImageExists.New("field %s order %d", image.FieldID, image.ImageOrder)
	}
	copied := *image
	m.images[image.ID] = &copied
	return image, nil
}
func (m *memImages) ListByAnswer(ctx context.Context, answerID uuid.UUID) ([]inspection.QuestionImage, error) {
	var out []inspection.QuestionImage
	for _, image := range m.images {
		if image.AnswerID == answerID {
			out = append(out, *image)
		}
	}
	sortImages(out)
	return out, nil
}
func (m *memImages) ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]inspection.QuestionImage, error) {
	db := (*memDB)(m)
	var out []inspection.QuestionImage
	for _, image := range m.images {
		if answer, ok := db.answers[image.AnswerID]; ok && answer.InspectionID == inspectionID {
			out = append(out, *image)
		}
	}
	sortImages(out)
	return out, nil
}
func (m *memImages) ReparentByInspection(ctx context.Context, inspectionID, answerID uuid.UUID) error {
	db := (*memDB)(m)
	for _, image := range m.images {
		if answer, ok := db.answers[image.AnswerID]; ok && answer.InspectionID == inspectionID {
			image.AnswerID = answerID
		}
	}
	return nil
}
func (m *memImages) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.images, id)
	return nil
}
func (m *memImages) DeleteByInspection(ctx context.Context, inspectionID uuid.UUID) error {
	db := (*memDB)(m)
	for id, image := range m.images {
		if answer, ok := db.answers[image.AnswerID]; ok && answer.InspectionID == inspectionID {
			delete(m.images, id)
		}
	}
	return nil
}

func sortImages(images []inspection.QuestionImage) {
	sort.Slice(images, func(i, j int) bool {
		if images[i].Section != images[j].Section {
			return images[i].Section < images[j].Section
		}
		if images[i].FieldID != images[j].FieldID {
			return images[i].FieldID < images[j].FieldID
		}
		return images[i].ImageOrder < images[j].ImageOrder
	})
}

// fixture builds a service, an inspector context and an assigned inspection
// using the built-in questionnaire.
func fixture(t *testing.T) (*inspection.Service, *memDB, context.Context, *inspection.Inspection) {
	db := newMemDB()
	service, err := inspection.NewService(zaptest.NewLogger(t), db)
	require.NoError(t, err)

	orgID := uuid.New()
	inspector := &inspection.User{
		ID:             uuid.New(),
		OrganizationID: orgID,
		FullName:       "Бат",
		Email:          "bat@example.test",
		Role:           inspection.RoleInspector,
	}
	db.users[inspector.ID] = inspector

	record := &inspection.Inspection{
		ID:             uuid.New(),
		OrganizationID: orgID,
		DeviceID:       uuid.New(),
		Title:          "60 тонн авто жин",
		Type:           inspection.TypeInspection,
		ScheduleType:   inspection.ScheduleScheduled,
		Status:         inspection.StatusDraft,
		AssignedTo:     &inspector.ID,
		CreatedBy:      inspector.ID,
		CreatedAt:      time.Now(),
	}
	db.inspections[record.ID] = record

	ctx := inspection.WithAuth(context.Background(), inspection.Authorization{User: *inspector})
	return service, db, ctx, record
}

func payload(t *testing.T, data string) *ordered.Doc {
	t.Helper()
	doc, err := ordered.Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestSubmitSectionFirstWrite(t *testing.T) {
	service, db, ctx, record := fixture(t)

	result, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:   record.ID,
		Section:        "exterior",
		IsFirstSection: true,
		SectionStatus:  inspection.SectionCompleted,
		Payload: payload(t, `{
			"date": "2024-05-01",
			"inspector": "Бат",
			"platform_plate": {"status": "ok"},
			"frame": {"status": "ok"}
		}`),
	})
	require.NoError(t, err)

	assert.False(t, result.IsCompletion)
	assert.Equal(t, "indicator", result.NextSection)
	assert.False(t, result.IsLast)

	answer, err := db.Answers().Get(ctx, result.AnswerID)
	require.NoError(t, err)

	metadata, ok := answer.Answers.GetDoc(inspection.KeyMetadata)
	require.True(t, ok)
	date, _ := metadata.GetString("date")
	assert.Equal(t, "2024-05-01", date)

	section, ok := answer.Answers.GetDoc("exterior")
	require.True(t, ok)
	assert.False(t, section.Has("date"), "metadata fields must not appear as answers")

	stored, err := db.Inspections().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, inspection.StatusInProgress, stored.Status)
	assert.Greater(t, stored.Progress, 0)
	assert.Less(t, stored.Progress, 100)
}

func TestSubmitSectionMergesIntoSameRow(t *testing.T) {
	service, db, ctx, record := fixture(t)

	first, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:   record.ID,
		Section:        "exterior",
		IsFirstSection: true,
		Payload:        payload(t, `{"date":"2024-05-01","frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)

	second, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      "indicator",
		AnswerID:     &first.AnswerID,
		Payload:      payload(t, `{"display":{"status":"ok"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, first.AnswerID, second.AnswerID)

	rows, err := db.Answers().ListByInspection(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Answers.Has("exterior"))
	assert.True(t, rows[0].Answers.Has("indicator"))
}

func TestSubmitSectionRejectsForeignAnswerID(t *testing.T) {
	service, _, ctx, record := fixture(t)

	foreign := uuid.New()
	_, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      "exterior",
		AnswerID:     &foreign,
		Payload:      payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.True(t, inspection.ErrValidation.Has(err))
}

func TestSubmitSectionCompletionCollapses(t *testing.T) {
	service, db, ctx, record := fixture(t)

	sections := []string{"exterior", "indicator", "jbox", "sensor", "foundation"}
	for i, section := range sections {
		_, err := service.SubmitSection(ctx, inspection.SectionWrite{
			InspectionID:   record.ID,
			Section:        section,
			IsFirstSection: i == 0,
			SectionStatus:  inspection.SectionCompleted,
			Payload:        payload(t, `{"some_field":{"status":"ok"}}`),
		})
		require.NoError(t, err)
	}

	// simulate a stray transient row from a parallel writer
	stray := &inspection.Answer{
		ID:           uuid.New(),
		InspectionID: record.ID,
		Answers:      payload(t, `{"remarks":"транзиент мөр"}`),
		AnsweredAt:   time.Now().Add(-time.Hour),
	}
	_, err := db.Answers().Insert(context.Background(), stray)
	require.NoError(t, err)

	_, err = service.RecordImage(ctx, &inspection.QuestionImage{
		AnswerID:   stray.ID,
		FieldID:    "platform_plate",
		Section:    "exterior",
		ImageOrder: 1,
		ImageURL:   "http://localhost/ftp_images/plate.jpg",
		FileName:   "plate.jpg",
	})
	require.NoError(t, err)

	result, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:  record.ID,
		Section:       "cleanliness",
		SectionStatus: inspection.SectionCompleted,
		Payload:       payload(t, `{"platform":{"status":"ok"}}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsCompletion)
	assert.True(t, result.IsLast)

	rows, err := db.Answers().ListByInspection(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1, "completion must collapse to exactly one row")

	aggregate := rows[0].Answers
	for _, section := range append(sections, "cleanliness") {
		assert.True(t, aggregate.Has(section), "missing section %s", section)
	}
	remarks, _ := aggregate.GetString(inspection.KeyRemarks)
	assert.Equal(t, "транзиент мөр", remarks)

	// uploaded images survive the collapse on the surviving row
	images, err := db.Images().ListByInspection(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "plate.jpg", images[0].FileName)
	assert.Equal(t, rows[0].ID, images[0].AnswerID)

	stored, err := db.Inspections().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, inspection.StatusSubmitted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.NotNil(t, stored.CompletedAt)
}

func TestSubmitSectionProgressCappedUntilSubmission(t *testing.T) {
	service, db, ctx, record := fixture(t)

	_, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:   record.ID,
		Section:        "exterior",
		IsFirstSection: true,
		Progress:       150,
		Payload:        payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)

	stored, err := db.Inspections().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, stored.Progress, "progress stays below 100 until submission")

	// progress never decreases
	_, err = service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      "indicator",
		Progress:     10,
		Payload:      payload(t, `{"display":{"status":"ok"}}`),
	})
	require.NoError(t, err)

	stored, err = db.Inspections().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, stored.Progress)
}

func TestSubmitSectionSignaturesCompletion(t *testing.T) {
	service, db, ctx, record := fixture(t)

	for i, section := range inspection.DefaultCatalogue().SectionKeys() {
		_, err := service.SubmitSection(ctx, inspection.SectionWrite{
			InspectionID:   record.ID,
			Section:        section,
			IsFirstSection: i == 0,
			Payload:        payload(t, `{"f":{"status":"ok"}}`),
		})
		require.NoError(t, err)
	}

	// a second row left behind by an out-of-order write
	stray := &inspection.Answer{
		ID:           uuid.New(),
		InspectionID: record.ID,
		Answers:      payload(t, `{"remarks":"хоцорсон мөр"}`),
		AnsweredAt:   time.Now().Add(-time.Hour),
	}
	_, err := db.Answers().Insert(context.Background(), stray)
	require.NoError(t, err)

	result, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      inspection.KeySignatures,
		Status:       "SUBMITTED",
		Payload:      payload(t, `{"signatures":{"inspector":"data:image/png;base64,AA=="}}`),
	})
	require.NoError(t, err)
	assert.True(t, result.IsCompletion)

	rows, err := db.Answers().ListByInspection(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1, "signature completion must collapse to exactly one row")
	assert.Equal(t, result.AnswerID, rows[0].ID)
	signatures, ok := rows[0].Answers.GetDoc(inspection.KeySignatures)
	require.True(t, ok)
	assert.True(t, signatures.Has("inspector"))
	remarks, _ := rows[0].Answers.GetString(inspection.KeyRemarks)
	assert.Equal(t, "хоцорсон мөр", remarks)

	stored, err := db.Inspections().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, inspection.StatusSubmitted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.NotNil(t, stored.CompletedAt)
}

func TestSubmitSectionRejectsUnknownSectionStatus(t *testing.T) {
	service, _, ctx, record := fixture(t)

	_, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:  record.ID,
		Section:       "exterior",
		SectionStatus: inspection.SectionStatus("DONE"),
		Payload:       payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.True(t, inspection.ErrValidation.Has(err))

	// lower case values normalize instead of failing
	result, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:  record.ID,
		Section:       "exterior",
		SectionStatus: inspection.SectionStatus("in_progress"),
		Payload:       payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)
	assert.False(t, result.IsCompletion)
}

func TestSubmitSectionRemarksNeedExistingRow(t *testing.T) {
	service, _, ctx, record := fixture(t)

	_, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      inspection.KeyRemarks,
		Payload:      payload(t, `{"remarks":"тэмдэглэл"}`),
	})
	require.True(t, inspection.ErrNoRecord.Has(err))
}

func TestSubmitSectionAccessControl(t *testing.T) {
	service, db, _, record := fixture(t)

	outsider := &inspection.User{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Role:           inspection.RoleInspector,
	}
	db.users[outsider.ID] = outsider
	ctx := inspection.WithAuth(context.Background(), inspection.Authorization{User: *outsider})

	_, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      "exterior",
		Payload:      payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.True(t, inspection.ErrForbidden.Has(err))

	// admins from another organization may write
	admin := &inspection.User{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Role:           inspection.RoleAdministrator,
	}
	db.users[admin.ID] = admin
	adminCtx := inspection.WithAuth(context.Background(), inspection.Authorization{User: *admin})

	_, err = service.SubmitSection(adminCtx, inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      "exterior",
		Payload:      payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)
}

func TestSubmitSectionMissingAuth(t *testing.T) {
	service, _, _, record := fixture(t)

	_, err := service.SubmitSection(context.Background(), inspection.SectionWrite{
		InspectionID: record.ID,
		Section:      "exterior",
		Payload:      payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.True(t, inspection.ErrUnauthorized.Has(err))
}

func TestSaveSignatureMergesIntoAggregate(t *testing.T) {
	service, db, ctx, record := fixture(t)

	first, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:   record.ID,
		Section:        "exterior",
		IsFirstSection: true,
		Payload:        payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)

	answerID, err := service.SaveSignature(ctx, record.ID, "inspector", "data:image/png;base64,AA==", nil)
	require.NoError(t, err)
	assert.Equal(t, first.AnswerID, answerID)

	answer, err := db.Answers().Get(ctx, answerID)
	require.NoError(t, err)
	signatures, ok := answer.Answers.GetDoc(inspection.KeySignatures)
	require.True(t, ok)
	value, _ := signatures.GetString("inspector")
	assert.Equal(t, "data:image/png;base64,AA==", value)
}

func TestSaveSignatureRejectsNonDataURL(t *testing.T) {
	service, _, ctx, record := fixture(t)

	_, err := service.SaveSignature(ctx, record.ID, "inspector", "not-a-data-url", nil)
	require.True(t, inspection.ErrValidation.Has(err))
}

func TestDeleteInspectionCascades(t *testing.T) {
	service, db, ctx, record := fixture(t)

	result, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:   record.ID,
		Section:        "exterior",
		IsFirstSection: true,
		Payload:        payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)

	_, err = service.RecordImage(ctx, &inspection.QuestionImage{
		AnswerID:   result.AnswerID,
		FieldID:    "frame",
		Section:    "exterior",
		ImageOrder: 1,
		ImageURL:   "http://localhost/ftp_images/x.jpg",
		FileName:   "x.jpg",
	})
	require.NoError(t, err)

	removed, err := service.DeleteInspection(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "x.jpg", removed[0].FileName)

	rows, err := db.Answers().ListByInspection(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = service.GetInspection(ctx, record.ID)
	require.True(t, inspection.ErrNoRecord.Has(err))
}

func TestRecordImageSlotConflict(t *testing.T) {
	service, _, ctx, record := fixture(t)

	result, err := service.SubmitSection(ctx, inspection.SectionWrite{
		InspectionID:   record.ID,
		Section:        "exterior",
		IsFirstSection: true,
		Payload:        payload(t, `{"frame":{"status":"ok"}}`),
	})
	require.NoError(t, err)

	image := inspection.QuestionImage{
		AnswerID:   result.AnswerID,
		FieldID:    "frame",
		Section:    "exterior",
		ImageOrder: 1,
		ImageURL:   "http://localhost/ftp_images/a.jpg",
		FileName:   "a.jpg",
	}
	first := image
	_, err = service.RecordImage(ctx, &first)
	require.NoError(t, err)

	second := image
	second.FileName = "b.jpg"
	_, err = service.RecordImage(ctx, &second)
	require.True(t, inspection.ErrImageExists.Has(err))

	existing, err := service.ImageSlot(ctx, result.AnswerID, "frame", 1)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "a.jpg", existing.FileName)

	_, err = service.RecordImage(ctx, &inspection.QuestionImage{
		AnswerID:   result.AnswerID,
		FieldID:    "frame",
		Section:    "exterior",
		ImageOrder: 0,
	})
	require.True(t, inspection.ErrValidation.Has(err))
}

func TestAssignRequiresAdmin(t *testing.T) {
	service, db, ctx, record := fixture(t)

	other := &inspection.User{ID: uuid.New(), OrganizationID: record.OrganizationID}
	db.users[other.ID] = other

	_, _, err := service.Assign(ctx, record.ID, other.ID)
	require.True(t, inspection.ErrForbidden.Has(err))

	admin := &inspection.User{
		ID:             uuid.New(),
		OrganizationID: record.OrganizationID,
		Role:           inspection.RoleAdministrator,
	}
	db.users[admin.ID] = admin
	adminCtx := inspection.WithAuth(context.Background(), inspection.Authorization{User: *admin})

	updated, assignee, err := service.Assign(adminCtx, record.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, assignee.ID)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, other.ID, *updated.AssignedTo)
}

func TestListByScheduleType(t *testing.T) {
	service, db, ctx, record := fixture(t)

	daily := *record
	daily.ID = uuid.New()
	daily.ScheduleType = inspection.ScheduleDaily
	db.inspections[daily.ID] = &daily

	list, err := service.ListByScheduleType(ctx, inspection.ScheduleScheduled)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, record.ID, list[0].ID)

	list, err = service.ListByScheduleType(ctx, inspection.ScheduleDaily)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, daily.ID, list[0].ID)
}
