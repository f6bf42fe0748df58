package admission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/medrex/slot-admission/pkg/clock"
	"github.com/medrex/slot-admission/pkg/config"
	"github.com/medrex/slot-admission/pkg/logger"
	"github.com/medrex/slot-admission/pkg/monitoring"
	"github.com/medrex/slot-admission/pkg/sealed"
	"github.com/medrex/slot-admission/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testService wires a service around a fixed clock, skipping database and
// redis, so handler tests drive the same core the scenario tests use.
func newTestService(t *testing.T) (*Service, *mux.Router, *clock.Fixed) {
	t.Helper()

	clk := &clock.Fixed{T: atHour(10)}
	log := logger.New("error")
	core := NewCore(
		NewAccessRegistry(testAdmin),
		DefaultWindowPolicy(),
		sealed.NewAESProvider("test-sealing-key"),
		clk,
		NewLogNotifier(log),
		log,
	)

	svc := &Service{
		config: &config.Config{
			Monitoring: config.MonitoringConfig{HealthPath: "/health"},
		},
		logger: log,
		core:   core,
		tokens: NewTokenValidator("test-secret", "slot-admission"),
		health: monitoring.NewHealthHandler("admission-service"),
	}

	router := mux.NewRouter()
	svc.setupRoutes(router)
	return svc, router, clk
}

func doRequest(t *testing.T, svc *Service, router *mux.Router, method, path string, caller types.Principal, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		token, err := svc.tokens.Issue(caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_MissingToken(t *testing.T) {
	svc, router, _ := newTestService(t)

	rec := doRequest(t, svc, router, "POST", "/api/v1/registry/surgeons", "", authorizeRequest{Principal: "surgeon-s"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_InvalidToken(t *testing.T) {
	_, router, _ := newTestService(t)

	req := httptest.NewRequest("GET", "/api/v1/slots/current/requests/status", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_TOKEN", body["code"])
}

func TestHandlers_AuthorizeSurgeon(t *testing.T) {
	svc, router, _ := newTestService(t)

	rec := doRequest(t, svc, router, "POST", "/api/v1/registry/surgeons", testAdmin, authorizeRequest{Principal: string(testSurgeon)})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Non-admin callers are rejected with 403
	rec = doRequest(t, svc, router, "POST", "/api/v1/registry/patients", testSurgeon, authorizeRequest{Principal: string(patientA)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_CreateSlot(t *testing.T) {
	svc, router, _ := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))

	rec := doRequest(t, svc, router, "POST", "/api/v1/slots", testSurgeon, createSlotRequest{
		SurgeonID:    "dr-house",
		ScheduleTime: atHour(15).Unix(),
		Capacity:     3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var summary types.SlotSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, uint64(1), summary.ID)
	assert.Equal(t, types.StateOpen, summary.State)
	assert.Equal(t, uint8(3), summary.Capacity)
}

func TestHandlers_CreateSlot_OutsideWindow(t *testing.T) {
	svc, router, clk := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))

	clk.Set(atHour(19))
	rec := doRequest(t, svc, router, "POST", "/api/v1/slots", testSurgeon, createSlotRequest{
		SurgeonID:    "dr-house",
		ScheduleTime: atHour(15).Unix(),
		Capacity:     3,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlers_RequestAppointment(t *testing.T) {
	svc, router, _ := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))
	require.NoError(t, svc.core.AuthorizePatient(testAdmin, patientA))
	_, err := svc.core.CreateSlot(testSurgeon, "dr-house", atHour(15), 2)
	require.NoError(t, err)

	rec := doRequest(t, svc, router, "POST", "/api/v1/slots/current/requests", patientA, appointmentRequest{
		PatientID:   "pid-a",
		Urgency:     7,
		SurgeryType: 3,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// A duplicate maps to 409
	rec = doRequest(t, svc, router, "POST", "/api/v1/slots/current/requests", patientA, appointmentRequest{
		PatientID:   "pid-a",
		Urgency:     7,
		SurgeryType: 3,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// An out-of-range urgency maps to 400
	rec = doRequest(t, svc, router, "POST", "/api/v1/slots/current/requests", patientA, appointmentRequest{
		PatientID:   "pid-a",
		Urgency:     42,
		SurgeryType: 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_RequestStatus(t *testing.T) {
	svc, router, _ := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))
	require.NoError(t, svc.core.AuthorizePatient(testAdmin, patientA))
	_, err := svc.core.CreateSlot(testSurgeon, "dr-house", atHour(15), 2)
	require.NoError(t, err)
	require.NoError(t, svc.core.RequestAppointment(patientA, "pid-a", 7, 3))

	rec := doRequest(t, svc, router, "GET", "/api/v1/slots/current/requests/status", patientA, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status types.RequestStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Submitted)
	assert.Equal(t, uint64(1), status.SlotID)

	rec = doRequest(t, svc, router, "GET", "/api/v1/slots/current/requests/status", patientB, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Submitted)
}

func TestHandlers_ProcessAssignments(t *testing.T) {
	svc, router, clk := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))
	require.NoError(t, svc.core.AuthorizePatient(testAdmin, patientA))
	_, err := svc.core.CreateSlot(testSurgeon, "dr-house", atHour(15), 2)
	require.NoError(t, err)
	require.NoError(t, svc.core.RequestAppointment(patientA, "pid-a", 7, 3))

	// Outside an assignment hour the round is rejected with 422
	rec := doRequest(t, svc, router, "POST", "/api/v1/assignments/process", patientA, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	clk.Set(atHour(13))
	rec = doRequest(t, svc, router, "POST", "/api/v1/assignments/process", patientA, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary types.SlotSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Assigned)
	require.NotNil(t, summary.AssignedTo)
	assert.Equal(t, patientA, *summary.AssignedTo)
}

func TestHandlers_EmergencyAssign(t *testing.T) {
	svc, router, _ := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))
	require.NoError(t, svc.core.AuthorizePatient(testAdmin, patientA))
	_, err := svc.core.CreateSlot(testSurgeon, "dr-house", atHour(15), 2)
	require.NoError(t, err)
	require.NoError(t, svc.core.RequestAppointment(patientA, "pid-a", 3, 3))

	// A patient without a request on record maps to 404
	rec := doRequest(t, svc, router, "POST", "/api/v1/slots/1/emergency-assign", testAdmin, emergencyAssignRequest{Patient: string(patientB)})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, svc, router, "POST", "/api/v1/slots/1/emergency-assign", testAdmin, emergencyAssignRequest{Patient: string(patientA)})
	require.Equal(t, http.StatusOK, rec.Code)

	var summary types.SlotSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.NotNil(t, summary.AssignedUrgency)
	assert.Equal(t, types.EmergencyLevel, *summary.AssignedUrgency)

	// The slot is now closed; a second override hits the state check
	rec = doRequest(t, svc, router, "POST", "/api/v1/slots/1/emergency-assign", testAdmin, emergencyAssignRequest{Patient: string(patientA)})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_SlotQueries(t *testing.T) {
	svc, router, _ := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))

	// No slot yet: current and by-id both 404
	rec := doRequest(t, svc, router, "GET", "/api/v1/slots/current", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, svc, router, "GET", "/api/v1/slots/7", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	summary, err := svc.core.CreateSlot(testSurgeon, "dr-house", atHour(15), 2)
	require.NoError(t, err)

	rec = doRequest(t, svc, router, "GET", fmt.Sprintf("/api/v1/slots/%d", summary.ID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlers_Requesters(t *testing.T) {
	svc, router, _ := newTestService(t)
	require.NoError(t, svc.core.AuthorizeSurgeon(testAdmin, testSurgeon))
	require.NoError(t, svc.core.AuthorizePatient(testAdmin, patientA))
	_, err := svc.core.CreateSlot(testSurgeon, "dr-house", atHour(15), 2)
	require.NoError(t, err)
	require.NoError(t, svc.core.RequestAppointment(patientA, "pid-a", 7, 3))

	rec := doRequest(t, svc, router, "GET", "/api/v1/slots/1/requesters", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SlotID     uint64            `json:"slot_id"`
		Requesters []types.Principal `json:"requesters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []types.Principal{patientA}, body.Requesters)

	rec = doRequest(t, svc, router, "GET", "/api/v1/slots/1/requesters", patientA, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_CurrentHour(t *testing.T) {
	svc, router, clk := newTestService(t)

	clk.Set(atHour(14))
	rec := doRequest(t, svc, router, "GET", "/api/v1/clock/hour", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 14, body["hour"])
}
