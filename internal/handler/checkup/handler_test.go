package checkup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/internal/repository"
	checkupService "github.com/renalcare/capd-api/internal/service/checkup"
	missedService "github.com/renalcare/capd-api/internal/service/missed"
	rescheduleService "github.com/renalcare/capd-api/internal/service/reschedule"
	"github.com/renalcare/capd-api/pkg/logger"
	"github.com/renalcare/capd-api/pkg/metrics"
)

type fakeStore struct {
	repository.AppointmentRepository
	mu           sync.Mutex
	appointments map[uuid.UUID]*model.Appointment
	listMissedN  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (f *fakeStore) add(apt *model.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appointments[apt.ID] = apt
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

func (f *fakeStore) Update(_ context.Context, apt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.appointments[apt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != apt.Version {
		return repository.ErrVersionConflict
	}
	clone := *apt
	clone.Version++
	f.appointments[apt.ID] = &clone
	return nil
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

func (f *fakeStore) ListMissed(_ context.Context, before time.Time) ([]*model.MissedAppointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listMissedN++
	var out []*model.MissedAppointment
	for _, apt := range f.appointments {
		if apt.CheckupStatus != model.CheckupStatusPending {
			continue
		}
		if !model.DateOf(apt.AppointmentDate).Before(model.DateOf(before)) {
			continue
		}
		out = append(out, &model.MissedAppointment{
			Appointment:    *apt,
			PatientName:    "Alice",
			PatientEmail:   "alice@example.com",
			HospitalNumber: "HN-001",
		})
	}
	return out, nil
}

type fakePatients struct{}

func (fakePatients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	p := &model.Patient{
		Name:           "Alice",
		Email:          "alice@example.com",
		HospitalNumber: "HN-001",
		Status:         model.PatientStatusActive,
	}
	p.ID = id
	return p, nil
}

type fakeRequests struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*model.RescheduleRequest
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{requests: make(map[uuid.UUID]*model.RescheduleRequest)}
}

func (f *fakeRequests) Create(_ context.Context, req *model.RescheduleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.ID = uuid.New()
	req.Status = model.RescheduleRequestPending
	clone := *req
	f.requests[req.ID] = &clone
	return nil
}

func (f *fakeRequests) Get(_ context.Context, id uuid.UUID) (*model.RescheduleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *req
	return &clone, nil
}

func (f *fakeRequests) GetPendingForAppointment(_ context.Context, appointmentID uuid.UUID) (*model.RescheduleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.requests {
		if req.AppointmentID == appointmentID && req.Status == model.RescheduleRequestPending {
			clone := *req
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRequests) ListPending(_ context.Context) ([]*model.RescheduleRequest, error) {
	return nil, nil
}

func (f *fakeRequests) Decide(_ context.Context, id uuid.UUID, status model.RescheduleRequestStatus, decidedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.Status != model.RescheduleRequestPending {
		return repository.ErrNotFound
	}
	req.Status = status
	req.DecidedAt = &decidedAt
	return nil
}

func date(s string) time.Time {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func pendingAppointment(patientID uuid.UUID, on string) *model.Appointment {
	apt := &model.Appointment{
		PatientID:          patientID,
		AppointmentDate:    date(on),
		ConfirmationStatus: model.ConfirmationStatusConfirmed,
		CheckupStatus:      model.CheckupStatusPending,
	}
	apt.ID = uuid.New()
	return apt
}

type testEnv struct {
	engine *gin.Engine
	store  *fakeStore
}

func newTestEnv(t *testing.T, today string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newFakeStore()
	requests := newFakeRequests()
	clock := func() time.Time { return date(today) }

	noop := notifier.DispatcherFunc(func(context.Context, model.Recipient, model.NotificationPayload) error {
		return nil
	})

	checkups := checkupService.NewService(store, fakePatients{}, 0).WithClock(clock)
	detector := missedService.NewService(store).WithClock(clock)
	rescheduler := rescheduleService.NewService(
		store, fakePatients{}, requests, detector, noop,
		logger.NewLogger(nil),
		rescheduleService.Config{OffsetDays: 7, MaxCollisionProbes: 30, DispatchTimeout: time.Second},
	).WithClock(clock)

	h := NewHandler(checkups, detector, rescheduler, metrics.New(fmt.Sprintf("test_%s", uuid.New().String()[:8])), time.Minute)

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1"))

	return &testEnv{engine: engine, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestGetMissedAppointments(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")
	env.store.add(pendingAppointment(uuid.New(), "2024-03-10"))
	env.store.add(pendingAppointment(uuid.New(), "2024-03-11"))
	env.store.add(pendingAppointment(uuid.New(), "2024-03-14"))

	w := env.do(t, http.MethodGet, "/api/v1/missed-appointments", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.True(t, resp.Success)

	var report model.MissedReport
	require.NoError(t, json.Unmarshal(resp.Data, &report))
	assert.Equal(t, 2, report.Counts.Unrescheduled)
	assert.Equal(t, 1, report.Counts.YesterdayUnrescheduled)
	assert.Len(t, report.Appointments, 2)
}

func TestGetMissedAppointmentsIsCached(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")
	env.store.add(pendingAppointment(uuid.New(), "2024-03-10"))

	first := env.do(t, http.MethodGet, "/api/v1/missed-appointments", nil)
	require.Equal(t, http.StatusOK, first.Code)
	second := env.do(t, http.MethodGet, "/api/v1/missed-appointments", nil)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, 1, env.store.listMissedN)
}

func TestRescheduleMissedBatch(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")
	m1 := pendingAppointment(uuid.New(), "2024-03-10")
	m2 := pendingAppointment(uuid.New(), "2024-03-12")
	env.store.add(m1)
	env.store.add(m2)

	w := env.do(t, http.MethodPost, "/api/v1/reschedule-missed-batch", model.BatchRescheduleRequest{
		ScheduleIDs: []uuid.UUID{m1.ID, m2.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.True(t, resp.Success)

	var batch model.BatchRescheduleResponse
	require.NoError(t, json.Unmarshal(resp.Data, &batch))
	assert.False(t, batch.Success)
	assert.Equal(t, []string{"2024-03-17"}, batch.NewDates)
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Errors[0], m2.ID.String())
}

func TestRescheduleMissedBatchRejectsEmptySelection(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")

	w := env.do(t, http.MethodPost, "/api/v1/reschedule-missed-batch", map[string]interface{}{
		"schedule_ids": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveRescheduleFlow(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")
	apt := pendingAppointment(uuid.New(), "2024-03-20")
	env.store.add(apt)

	reqW := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/appointments/%s/reschedule-request", apt.ID), map[string]string{
		"requested_date": "2024-03-25",
		"reason":         "work trip",
	})
	require.Equal(t, http.StatusOK, reqW.Code)

	approveW := env.do(t, http.MethodPost, "/api/v1/approve-reschedule", model.DecideRescheduleRequest{
		ScheduleID: apt.ID,
		Approve:    true,
	})
	require.Equal(t, http.StatusOK, approveW.Code)

	updated, err := env.store.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, date("2024-03-25"), model.DateOf(updated.AppointmentDate))
}

func TestApproveRescheduleWithoutRequest(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")
	apt := pendingAppointment(uuid.New(), "2024-03-20")
	env.store.add(apt)

	w := env.do(t, http.MethodPost, "/api/v1/approve-reschedule", model.DecideRescheduleRequest{
		ScheduleID: apt.ID,
		Approve:    true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndConfirmAppointment(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")

	createW := env.do(t, http.MethodPost, "/api/v1/appointments", model.CreateAppointmentRequest{
		PatientID:       uuid.New(),
		AppointmentDate: "2024-03-20",
	})
	require.Equal(t, http.StatusOK, createW.Code)

	var apt model.Appointment
	require.NoError(t, json.Unmarshal(decode(t, createW).Data, &apt))

	confirmW := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/appointments/%s/confirm", apt.ID), nil)
	require.Equal(t, http.StatusOK, confirmW.Code)

	getW := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/appointments/%s", apt.ID), nil)
	require.Equal(t, http.StatusOK, getW.Code)

	var stored model.Appointment
	require.NoError(t, json.Unmarshal(decode(t, getW).Data, &stored))
	assert.Equal(t, model.ConfirmationStatusConfirmed, stored.ConfirmationStatus)
}

func TestGetAppointmentNotFound(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/appointments/%s", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAppointmentBadID(t *testing.T) {
	env := newTestEnv(t, "2024-03-12")

	w := env.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
