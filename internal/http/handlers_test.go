package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/workflow"
)

var handlerTestNow = time.Date(2025, time.June, 11, 10, 30, 0, 0, time.UTC)

func staffPrincipal() application.Principal {
	return application.Principal{
		UserID:      "usr-1",
		RoleID:      workflow.RoleSecretary,
		Permissions: []string{application.PermissionPatientsManage, application.PermissionInventoryManage, application.PermissionReportsView},
	}
}

// withPrincipal injects a fixed principal, standing in for the session middleware.
func withPrincipal(principal application.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func TestAuthHandler_CreateSession(t *testing.T) {
	t.Parallel()

	t.Run("issues the token via body, header, and cookie", func(t *testing.T) {
		t.Parallel()

		service := &authServiceStub{result: application.AuthenticateResult{
			User:    application.User{ID: "usr-1", Email: "claire.petit@example.com", DisplayName: "Claire Petit", RoleID: "secretary"},
			Session: application.Session{Token: "tok-123", ExpiresAt: handlerTestNow.Add(12 * time.Hour)},
		}}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"Claire.Petit@example.com","password":"s3cret-pass"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if got := recorder.Header().Get("X-Session-Token"); got != "tok-123" {
			t.Fatalf("expected token header, got %q", got)
		}
		if !strings.Contains(recorder.Header().Get("Set-Cookie"), "session_token=tok-123") {
			t.Fatalf("expected session cookie, got %q", recorder.Header().Get("Set-Cookie"))
		}
		if service.email != "claire.petit@example.com" {
			t.Fatalf("expected normalized email, got %q", service.email)
		}

		var resp loginResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Token != "tok-123" || resp.User.ID != "usr-1" {
			t.Fatalf("unexpected response: %#v", resp)
		}
	})

	t.Run("maps bad credentials to 401 with an error code", func(t *testing.T) {
		t.Parallel()

		service := &authServiceStub{err: application.ErrInvalidCredentials}
		router := NewRouter(RouterConfig{Auth: NewAuthHandler(service, nil)})

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"x@example.com","password":"wrong"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if !strings.Contains(recorder.Body.String(), "AUTH_INVALID_CREDENTIALS") {
			t.Fatalf("expected error code, got %s", recorder.Body.String())
		}
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Auth: NewAuthHandler(&authServiceStub{}, nil)})

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})
}

func TestPatientHandler(t *testing.T) {
	t.Parallel()

	newRouter := func(service *patientServiceStub) http.Handler {
		return NewRouter(RouterConfig{
			Patients:   NewPatientHandler(service, nil),
			Middleware: []func(http.Handler) http.Handler{withPrincipal(staffPrincipal())},
		})
	}

	t.Run("registers a patient", func(t *testing.T) {
		t.Parallel()

		service := &patientServiceStub{registered: &workflow.Patient{
			ID:            "pat-1",
			FullName:      "Jeanne Martin",
			CurrentRoomID: workflow.RoomAppointment,
			StatusInRoom:  workflow.StatusWaiting,
			CreatedAt:     handlerTestNow,
			UpdatedAt:     handlerTestNow,
		}}
		router := newRouter(service)

		body := `{"full_name":"Jeanne Martin","birth_date":"1961-04-02","requested_exam":"Scintigraphie osseuse"}`
		req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(body))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.registeredInput.FullName != "Jeanne Martin" || service.registeredInput.RequestedExam != "Scintigraphie osseuse" {
			t.Fatalf("unexpected input: %#v", service.registeredInput)
		}
		if service.registeredInput.BirthDate.Year() != 1961 {
			t.Fatalf("expected parsed birth date, got %v", service.registeredInput.BirthDate)
		}
	})

	t.Run("rejects unparseable birth dates", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&patientServiceStub{})
		req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(`{"full_name":"X","birth_date":"02/04/1961"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("routes completion to the addressed patient and room", func(t *testing.T) {
		t.Parallel()

		service := &patientServiceStub{completed: &workflow.Patient{ID: "pat-1", CurrentRoomID: workflow.RoomConsultation, StatusInRoom: workflow.StatusWaiting}}
		router := newRouter(service)

		req := httptest.NewRequest(http.MethodPost, "/patients/pat-1/complete", strings.NewReader(`{"room_id":"APPOINTMENT","data":{"appointment":{"notes":"10h30"}}}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if service.completeParams.PatientID != "pat-1" || service.completeParams.RoomID != workflow.RoomAppointment {
			t.Fatalf("unexpected params: %#v", service.completeParams)
		}
		if service.completeParams.Data.Appointment == nil || service.completeParams.Data.Appointment.Notes != "10h30" {
			t.Fatalf("expected appointment data, got %#v", service.completeParams.Data)
		}
	})

	t.Run("maps pathway conflicts to 409", func(t *testing.T) {
		t.Parallel()

		service := &patientServiceStub{completeErr: workflow.ErrWrongRoom}
		router := newRouter(service)

		req := httptest.NewRequest(http.MethodPost, "/patients/pat-1/complete", strings.NewReader(`{"room_id":"REPORT"}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
	})

	t.Run("maps unknown patients to 404", func(t *testing.T) {
		t.Parallel()

		service := &patientServiceStub{getErr: application.ErrNotFound}
		router := newRouter(service)

		req := httptest.NewRequest(http.MethodGet, "/patients/ghost", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})

	t.Run("surfaces validation errors with field details", func(t *testing.T) {
		t.Parallel()

		vErr := &application.ValidationError{FieldErrors: map[string]string{"full_name": "le nom complet est obligatoire"}}
		service := &patientServiceStub{registerErr: vErr}
		router := newRouter(service)

		req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(`{"full_name":""}`))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		if !strings.Contains(recorder.Body.String(), "le nom complet est obligatoire") {
			t.Fatalf("expected field error, got %s", recorder.Body.String())
		}
	})

	t.Run("forwards list filters from the query string", func(t *testing.T) {
		t.Parallel()

		service := &patientServiceStub{}
		router := newRouter(service)

		req := httptest.NewRequest(http.MethodGet, "/patients?room=INJECTION&status=WAITING&period=thisWeek", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if service.listParams.RoomID != workflow.RoomInjection || service.listParams.Status != workflow.StatusWaiting || service.listParams.Period != workflow.PeriodThisWeek {
			t.Fatalf("unexpected filters: %#v", service.listParams)
		}
	})

	t.Run("serves the room catalog", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&patientServiceStub{})
		req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}

		var resp listRoomsResponse
		if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Rooms) != 8 || resp.Rooms[0].ID != string(workflow.RoomRequest) {
			t.Fatalf("unexpected catalog: %#v", resp.Rooms)
		}
	})

	t.Run("rejects unsupported methods", func(t *testing.T) {
		t.Parallel()

		router := newRouter(&patientServiceStub{})
		req := httptest.NewRequest(http.MethodDelete, "/patients", nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", recorder.Code)
		}
	})
}

func TestInventoryHandler_DownloadLifeSheet(t *testing.T) {
	t.Parallel()

	service := &inventoryServiceStub{asset: application.Asset{ID: "inv-1", Designation: "Gamma caméra"}}
	router := NewRouter(RouterConfig{
		Inventory:  NewInventoryHandler(service, lifeSheetExporterStub{payload: []byte("workbook")}, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(staffPrincipal())},
	})

	req := httptest.NewRequest(http.MethodGet, "/assets/inv-1/lifesheet", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("expected xlsx content type, got %q", got)
	}
	if !strings.Contains(recorder.Header().Get("Content-Disposition"), "fiche-de-vie-inv-1.xlsx") {
		t.Fatalf("unexpected disposition: %q", recorder.Header().Get("Content-Disposition"))
	}
	if recorder.Body.String() != "workbook" {
		t.Fatalf("unexpected payload: %q", recorder.Body.String())
	}
}

func TestReportHandler_Statistics(t *testing.T) {
	t.Parallel()

	service := &reportingServiceStub{stats: application.ReferenceStats{Available: false, Day: handlerTestNow}}
	router := NewRouter(RouterConfig{
		Reports:    NewReportHandler(service, func() time.Time { return handlerTestNow }, nil),
		Middleware: []func(http.Handler) http.Handler{withPrincipal(staffPrincipal())},
	})

	req := httptest.NewRequest(http.MethodGet, "/reports/statistics", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var resp referenceStatsResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Available {
		t.Fatal("expected stats flagged unavailable")
	}
}

// authServiceStub implements authService for tests.
type authServiceStub struct {
	result application.AuthenticateResult
	err    error

	email string
}

func (s *authServiceStub) Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.email = params.Email
	if s.err != nil {
		return application.AuthenticateResult{}, s.err
	}
	return s.result, nil
}

func (s *authServiceStub) RevokeSession(ctx context.Context, token string) error {
	return s.err
}

// patientServiceStub implements patientService for tests.
type patientServiceStub struct {
	registered *workflow.Patient
	completed  *workflow.Patient

	registerErr error
	getErr      error
	completeErr error

	registeredInput application.PatientInput
	completeParams  application.CompleteRoomParams
	listParams      application.ListPatientsParams
}

func (s *patientServiceStub) RegisterPatient(ctx context.Context, params application.RegisterPatientParams) (*workflow.Patient, error) {
	s.registeredInput = params.Input
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.registered, nil
}

func (s *patientServiceStub) GetPatient(ctx context.Context, principal application.Principal, patientID string) (*workflow.Patient, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.registered, nil
}

func (s *patientServiceStub) ListPatients(ctx context.Context, params application.ListPatientsParams) ([]*workflow.Patient, error) {
	s.listParams = params
	return nil, nil
}

func (s *patientServiceStub) CompleteRoom(ctx context.Context, params application.CompleteRoomParams) (*workflow.Patient, error) {
	s.completeParams = params
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return s.completed, nil
}

func (s *patientServiceStub) MovePatient(ctx context.Context, params application.MovePatientParams) (*workflow.Patient, error) {
	return s.completed, nil
}

func (s *patientServiceStub) Rooms() []workflow.Room {
	return workflow.DefaultCatalog().Rooms()
}

// inventoryServiceStub implements inventoryService for tests.
type inventoryServiceStub struct {
	asset application.Asset
	item  application.StockItem
	err   error
}

func (s *inventoryServiceStub) CreateAsset(ctx context.Context, params application.CreateAssetParams) (application.Asset, error) {
	return s.asset, s.err
}

func (s *inventoryServiceStub) UpdateAsset(ctx context.Context, params application.UpdateAssetParams) (application.Asset, error) {
	return s.asset, s.err
}

func (s *inventoryServiceStub) GetAsset(ctx context.Context, principal application.Principal, assetID string) (application.Asset, error) {
	if s.err != nil {
		return application.Asset{}, s.err
	}
	if assetID != s.asset.ID {
		return application.Asset{}, application.ErrNotFound
	}
	return s.asset, nil
}

func (s *inventoryServiceStub) ListAssets(ctx context.Context, principal application.Principal) ([]application.Asset, error) {
	return []application.Asset{s.asset}, s.err
}

func (s *inventoryServiceStub) RecordAssetMovement(ctx context.Context, params application.RecordAssetMovementParams) (application.Asset, error) {
	return s.asset, s.err
}

func (s *inventoryServiceStub) CreateStockItem(ctx context.Context, params application.CreateStockItemParams) (application.StockItem, error) {
	return s.item, s.err
}

func (s *inventoryServiceStub) GetStockItem(ctx context.Context, principal application.Principal, itemID string) (application.StockItem, error) {
	return s.item, s.err
}

func (s *inventoryServiceStub) ListStockItems(ctx context.Context, principal application.Principal) ([]application.StockItem, error) {
	return []application.StockItem{s.item}, s.err
}

func (s *inventoryServiceStub) RecordStockMovement(ctx context.Context, params application.RecordStockMovementParams) (application.StockItem, error) {
	return s.item, s.err
}

// lifeSheetExporterStub implements lifeSheetExporter for tests.
type lifeSheetExporterStub struct {
	payload []byte
	err     error
}

func (s lifeSheetExporterStub) LifeSheet(asset application.Asset) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

// reportingServiceStub implements reportingService for tests.
type reportingServiceStub struct {
	report application.ActivityReport
	stats  application.ReferenceStats
	err    error
}

func (s *reportingServiceStub) ActivityReport(ctx context.Context, principal application.Principal, period workflow.Period, reference time.Time) (application.ActivityReport, error) {
	if s.err != nil {
		return application.ActivityReport{}, s.err
	}
	return s.report, nil
}

func (s *reportingServiceStub) ReferenceStats(ctx context.Context, principal application.Principal, day time.Time) (application.ReferenceStats, error) {
	if s.err != nil {
		return application.ReferenceStats{}, s.err
	}
	return s.stats, nil
}
