package admission

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/medrex/slot-admission/pkg/monitoring"
	"github.com/medrex/slot-admission/pkg/types"
)

// setupRoutes configures HTTP routes for the admission service
func (s *Service) setupRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Registry routes (admin)
	api.HandleFunc("/registry/surgeons", s.authorizeSurgeonHandler).Methods("POST")
	api.HandleFunc("/registry/patients", s.authorizePatientHandler).Methods("POST")

	// Slot lifecycle routes
	api.HandleFunc("/slots", s.createSlotHandler).Methods("POST")
	api.HandleFunc("/slots/current", s.currentSlotHandler).Methods("GET")
	api.HandleFunc("/slots/current/requests", s.requestAppointmentHandler).Methods("POST")
	api.HandleFunc("/slots/current/requests/status", s.requestStatusHandler).Methods("GET")
	api.HandleFunc("/slots/{id:[0-9]+}", s.slotByIDHandler).Methods("GET")
	api.HandleFunc("/slots/{id:[0-9]+}/requesters", s.requestersHandler).Methods("GET")
	api.HandleFunc("/slots/{id:[0-9]+}/emergency-assign", s.emergencyAssignHandler).Methods("POST")

	// Assignment round
	api.HandleFunc("/assignments/process", s.processAssignmentsHandler).Methods("POST")

	// Clock query
	api.HandleFunc("/clock/hour", s.currentHourHandler).Methods("GET")

	// Monitoring
	if s.config.Monitoring.Enabled {
		router.Handle(s.config.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}
	router.Handle(s.config.Monitoring.HealthPath, s.health).Methods("GET")

	router.Use(func(next http.Handler) http.Handler {
		return monitoring.Middleware("admission", next)
	})

	s.logger.Info("Admission service routes configured")
}

// callerPrincipal extracts the caller principal from the Bearer token
func (s *Service) callerPrincipal(r *http.Request) (types.Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", types.NewAuthorizationError("MISSING_TOKEN", "missing bearer token")
	}

	principal, err := s.tokens.Validate(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return "", types.NewAuthorizationError("INVALID_TOKEN", err.Error())
	}
	return principal, nil
}

type authorizeRequest struct {
	Principal string `json:"principal"`
}

// authorizeSurgeonHandler handles surgeon authorization
func (s *Service) authorizeSurgeonHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Principal == "" {
		s.writeError(w, types.NewValidationError("invalid request body", nil))
		return
	}

	if err := s.core.AuthorizeSurgeon(caller, types.Principal(req.Principal)); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "surgeon authorized"})
}

// authorizePatientHandler handles patient authorization
func (s *Service) authorizePatientHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Principal == "" {
		s.writeError(w, types.NewValidationError("invalid request body", nil))
		return
	}

	if err := s.core.AuthorizePatient(caller, types.Principal(req.Principal)); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "patient authorized"})
}

type createSlotRequest struct {
	SurgeonID    string `json:"surgeon_id"`
	ScheduleTime int64  `json:"schedule_time"`
	Capacity     uint8  `json:"capacity"`
}

// createSlotHandler handles slot creation
func (s *Service) createSlotHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req createSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.NewValidationError("invalid request body", nil))
		return
	}

	summary, err := s.core.CreateSlot(caller, req.SurgeonID, time.Unix(req.ScheduleTime, 0), req.Capacity)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, summary)
}

type appointmentRequest struct {
	PatientID   string `json:"patient_id"`
	Urgency     uint8  `json:"urgency"`
	SurgeryType uint8  `json:"surgery_type"`
}

// requestAppointmentHandler handles patient appointment requests
func (s *Service) requestAppointmentHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, types.NewValidationError("invalid request body", nil))
		return
	}

	if err := s.core.RequestAppointment(caller, req.PatientID, req.Urgency, req.SurgeryType); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{"message": "appointment requested"})
}

// processAssignmentsHandler triggers an assignment round
func (s *Service) processAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	summary, err := s.core.ProcessAssignments(caller)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.SaveSlotRecord(summary); err != nil {
			s.logger.Errorf("Failed to archive slot %d: %v", summary.ID, err)
		}
	}

	s.writeJSON(w, http.StatusOK, summary)
}

type emergencyAssignRequest struct {
	Patient string `json:"patient"`
}

// emergencyAssignHandler handles the admin emergency override
func (s *Service) emergencyAssignHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	slotID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, types.NewValidationError("invalid slot id", nil))
		return
	}

	var req emergencyAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Patient == "" {
		s.writeError(w, types.NewValidationError("invalid request body", nil))
		return
	}

	summary, err := s.core.EmergencyAssign(caller, slotID, types.Principal(req.Patient))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.store != nil {
		if err := s.store.SaveSlotRecord(summary); err != nil {
			s.logger.Errorf("Failed to archive slot %d: %v", summary.ID, err)
		}
	}

	s.writeJSON(w, http.StatusOK, summary)
}

// currentSlotHandler returns the current slot summary
func (s *Service) currentSlotHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.core.CurrentSlot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// slotByIDHandler returns a slot summary by id
func (s *Service) slotByIDHandler(w http.ResponseWriter, r *http.Request) {
	slotID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, types.NewValidationError("invalid slot id", nil))
		return
	}

	summary, err := s.core.SlotByID(slotID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// requestStatusHandler returns the caller's request status for the current slot
func (s *Service) requestStatusHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.core.RequestStatus(caller))
}

// requestersHandler returns the ordered requester list for a slot (admin)
func (s *Service) requestersHandler(w http.ResponseWriter, r *http.Request) {
	caller, err := s.callerPrincipal(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	slotID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, types.NewValidationError("invalid slot id", nil))
		return
	}

	requesters, err := s.core.Requesters(caller, slotID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"slot_id":    slotID,
		"requesters": requesters,
	})
}

// currentHourHandler returns the policy hour of day
func (s *Service) currentHourHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"hour": s.core.CurrentHour()})
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps admission error types to HTTP status codes
func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]interface{}{"error": err.Error()}

	if admErr, ok := types.GetAdmissionError(err); ok {
		body["type"] = string(admErr.Type)
		body["code"] = admErr.Code
		if admErr.Details != nil {
			body["details"] = admErr.Details
		}

		switch admErr.Type {
		case types.ErrorTypeAuthorization:
			status = http.StatusForbidden
		case types.ErrorTypeWindow:
			status = http.StatusUnprocessableEntity
		case types.ErrorTypeStateConflict, types.ErrorTypeDuplicate, types.ErrorTypeCapacity:
			status = http.StatusConflict
		case types.ErrorTypeValidation:
			status = http.StatusBadRequest
		case types.ErrorTypeNotFound:
			status = http.StatusNotFound
		}
	}

	s.writeJSON(w, status, body)
}
