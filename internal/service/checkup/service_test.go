package checkup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/repository"
)

type fakeStore struct {
	repository.AppointmentRepository
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
}

func newFakeStore() *fakeStore {
	return &fakeStore{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeStore) Create(_ context.Context, apt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt.ID = uuid.New()
	clone := *apt
	f.appointments[apt.ID] = &clone
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *apt
	return &clone, nil
}

func (f *fakeStore) Confirm(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	apt.ConfirmationStatus = model.ConfirmationStatusConfirmed
	return nil
}

func (f *fakeStore) Complete(_ context.Context, id uuid.UUID, remarks *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	apt, ok := f.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	apt.CheckupStatus = model.CheckupStatusCompleted
	if remarks != nil {
		apt.CheckupRemarks = remarks
	}
	return nil
}

func (f *fakeStore) HasActiveOnDate(_ context.Context, patientID uuid.UUID, date time.Time, excludeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, apt := range f.appointments {
		if apt.ID == excludeID || apt.PatientID != patientID {
			continue
		}
		if apt.CheckupStatus == model.CheckupStatusPending && model.SameDate(apt.AppointmentDate, date) {
			return true, nil
		}
	}
	return false, nil
}

type fakePatients struct {
	status model.PatientStatus
}

func (f fakePatients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p := &model.Patient{
		Name:           "Alice",
		Email:          "alice@example.com",
		HospitalNumber: "HN-001",
		Status:         f.status,
	}
	p.ID = id
	return p, nil
}

func testClock(s string) func() time.Time {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestCreateAppointment(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakePatients{status: model.PatientStatusActive}, 0).
		WithClock(testClock("2024-03-12"))

	apt, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-20",
		Remarks:         "first visit",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ConfirmationStatusPending, apt.ConfirmationStatus)
	assert.Equal(t, model.CheckupStatusPending, apt.CheckupStatus)
	require.NotNil(t, apt.CheckupRemarks)
	assert.Equal(t, "first visit", *apt.CheckupRemarks)
}

func TestCreateRejectsArchivedPatient(t *testing.T) {
	svc := NewService(newFakeStore(), fakePatients{status: model.PatientStatusArchived}, 0).
		WithClock(testClock("2024-03-12"))

	_, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-20",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestCreateRejectsDuplicateDate(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakePatients{status: model.PatientStatusActive}, 0).
		WithClock(testClock("2024-03-12"))

	patientID := uuid.New()
	req := &model.CreateAppointmentRequest{
		PatientID:       patientID,
		AppointmentDate: "2024-03-20",
	}
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has an appointment")
}

func TestCreateRejectsMalformedDate(t *testing.T) {
	svc := NewService(newFakeStore(), fakePatients{status: model.PatientStatusActive}, 0).
		WithClock(testClock("2024-03-12"))

	_, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "20/03/2024",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid appointment date")
}

func TestConfirmIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakePatients{status: model.PatientStatusActive}, 0).
		WithClock(testClock("2024-03-12"))

	apt, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-20",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Confirm(context.Background(), apt.ID))
	require.NoError(t, svc.Confirm(context.Background(), apt.ID))

	stored, err := store.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConfirmationStatusConfirmed, stored.ConfirmationStatus)
}

func TestCompleteBooksFollowUp(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakePatients{status: model.PatientStatusActive}, 90).
		WithClock(testClock("2024-03-12"))

	apt, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-12",
	})
	require.NoError(t, err)

	remarks := "all clear"
	followUp, err := svc.Complete(context.Background(), apt.ID, &remarks)
	require.NoError(t, err)
	require.NotNil(t, followUp)
	assert.Equal(t, mustDate("2024-06-10"), model.DateOf(followUp.AppointmentDate))
	assert.Equal(t, model.CheckupStatusPending, followUp.CheckupStatus)

	done, err := store.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckupStatusCompleted, done.CheckupStatus)
	require.NotNil(t, done.CheckupRemarks)
	assert.Equal(t, "all clear", *done.CheckupRemarks)
}

func TestCompleteWithoutFollowUpOffset(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakePatients{status: model.PatientStatusActive}, 0).
		WithClock(testClock("2024-03-12"))

	apt, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-12",
	})
	require.NoError(t, err)

	followUp, err := svc.Complete(context.Background(), apt.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, followUp)
}

func TestCompleteTwiceFails(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, fakePatients{status: model.PatientStatusActive}, 0).
		WithClock(testClock("2024-03-12"))

	apt, err := svc.Create(context.Background(), &model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-12",
	})
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), apt.ID, nil)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), apt.ID, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func mustDate(s string) time.Time {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}
