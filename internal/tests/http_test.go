package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"ridehail/internal/app"
	"ridehail/internal/domain"
	"ridehail/internal/handler"
	"ridehail/internal/middleware"
	"ridehail/internal/service"
)

// ──────────────────────────────────────────────
// 8. HTTP API
// ──────────────────────────────────────────────

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type apiFixture struct {
	*rideFixture
	responses *MockResponseStore
	router    *gin.Engine
}

func newAPIFixture() *apiFixture {
	f := newRideFixture(true)
	responses := NewMockResponseStore()
	driverService := service.NewDriverService(NewMockPositionStore(), f.drivers, &MockPublisher{}, discardLogger())

	router := app.NewRouter(app.RouterDeps{
		RideHandler:   handler.NewRideHandler(f.service),
		DriverHandler: handler.NewDriverHandler(driverService),
		ResponseStore: responses,
		Logger:        discardLogger(),
	})
	return &apiFixture{rideFixture: f, responses: responses, router: router}
}

func (f *apiFixture) do(t *testing.T, method, path, body string, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s %s: response is not a JSON object: %q", method, path, rec.Body.String())
	}
	return rec, decoded
}

func TestHTTP_CreateRideEnvelope(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	rec, body := f.do(t, http.MethodPost, "/api/v1/rides",
		`{"userId":"1234","source":{"latitude":12.9716,"longitude":77.5946},"destination":{"latitude":13.0827,"longitude":80.2707}}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Errorf("expected success=true, got %v", body["success"])
	}
	rideID, _ := body["rideId"].(string)
	if rideID == "" {
		t.Fatalf("expected rideId, got %v", body)
	}

	rec, body = f.do(t, http.MethodGet, "/api/v1/rides/"+rideID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := body["data"].(map[string]any)
	pickup := data["pickup"].(map[string]any)
	if data["status"] != "WAITING" || pickup["latitude"] != 12.9716 || pickup["longitude"] != 77.5946 {
		t.Errorf("unexpected ride %v", data)
	}
}

func TestHTTP_ValidationEnvelope(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"userId":`},
		{"missing destination", `{"userId":"1234","source":{"latitude":1,"longitude":1}}`},
		{"out of range", `{"userId":"1234","source":{"latitude":100,"longitude":1},"destination":{"latitude":1,"longitude":1}}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newAPIFixture()
			rec, body := f.do(t, http.MethodPost, "/api/v1/rides", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if body["success"] != false || body["code"] != handler.CodeValidation {
				t.Errorf("unexpected envelope %v", body)
			}
		})
	}
}

func TestHTTP_ListRidesAlwaysCarriesArray(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	rec, body := f.do(t, http.MethodGet, "/api/v1/viewAllRides/d1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, ok := body["data"].([]any)
	if !ok || len(data) != 0 {
		t.Errorf("expected data to be an empty array, got %v", body["data"])
	}

	f.rides.AddRide(waitingRide("r1"))
	_, body = f.do(t, http.MethodGet, "/api/v1/viewAllRides/d1", "", nil)
	if data := body["data"].([]any); len(data) != 1 {
		t.Errorf("expected one ride, got %v", data)
	}
}

func TestHTTP_AcceptConflictCodes(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	f.rides.AddRide(waitingRide("r1"))

	rec, body := f.do(t, http.MethodPost, "/api/v1/acceptRide", `{"driverId":"A","rideId":"r1"}`, nil)
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("driver A: %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodPost, "/api/v1/acceptRide", `{"driverId":"B","rideId":"r1"}`, nil)
	if rec.Code != http.StatusConflict || body["code"] != handler.CodeInvalidTransition {
		t.Errorf("driver B: expected 409 INVALID_TRANSITION, got %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodPost, "/api/v1/trips/end", `{"driverId":"B","rideId":"r1"}`, nil)
	if rec.Code != http.StatusForbidden || body["code"] != handler.CodeNotAssignedDriver {
		t.Errorf("driver B finish: expected 403 NOT_ASSIGNED_DRIVER, got %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodPost, "/api/v1/acceptRide", `{"driverId":"A","rideId":"missing"}`, nil)
	if rec.Code != http.StatusNotFound || body["code"] != handler.CodeNotFound {
		t.Errorf("missing ride: expected 404 NOT_FOUND, got %d %v", rec.Code, body)
	}
}

func TestHTTP_FinishCarriesFare(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	f.rides.AddRide(waitingRide("r1"))
	f.do(t, http.MethodPost, "/api/v1/acceptRide", `{"driverId":"A","rideId":"r1"}`, nil)

	rec, body := f.do(t, http.MethodPost, "/api/v1/trips/end", `{"driverId":"A","rideId":"r1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rec.Code, body)
	}
	fare, ok := body["fare"].(float64)
	if !ok || fare <= 0 {
		t.Errorf("expected a positive fare, got %v", body["fare"])
	}
	if stored := f.rides.GetRide("r1"); stored.Fare == nil || *stored.Fare != fare {
		t.Errorf("response fare %v does not match stored %v", fare, stored.Fare)
	}
}

func TestHTTP_CancelWithoutBody(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	f.rides.AddRide(waitingRide("r1"))

	rec, body := f.do(t, http.MethodPost, "/api/v1/rides/r1/cancel", "", nil)
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("expected cancel to succeed, got %d %v", rec.Code, body)
	}
	if f.rides.GetRide("r1").Status != domain.RideStatusCancelled {
		t.Error("expected ride CANCELLED")
	}
}

func TestHTTP_DriverLocation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	rec, body := f.do(t, http.MethodPost, "/api/v1/updateDriverLocation", `{"driverId":"d1","latitude":12.9716,"longitude":77.5946}`, nil)
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("expected update to succeed, got %d %v", rec.Code, body)
	}

	rec, body = f.do(t, http.MethodGet, "/api/v1/drivers/d1/location", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	loc := body["data"].(map[string]any)["location"].(map[string]any)
	if loc["latitude"] != 12.9716 || loc["longitude"] != 77.5946 {
		t.Errorf("unexpected location %v", loc)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/v1/updateDriverLocation", `{"driverId":"d1","latitude":12.9716}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing longitude, got %d", rec.Code)
	}

	rec, body = f.do(t, http.MethodGet, "/api/v1/drivers/nobody/location", "", nil)
	if rec.Code != http.StatusNotFound || body["code"] != handler.CodeNotFound {
		t.Errorf("expected 404 NOT_FOUND, got %d %v", rec.Code, body)
	}
}

func TestHTTP_IdempotentCreateReplaysResponse(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	header := http.Header{middleware.IdempotencyHeader: []string{"key-1"}}
	payload := `{"userId":"1234","source":{"latitude":12.9716,"longitude":77.5946},"destination":{"latitude":13.0827,"longitude":80.2707}}`

	_, first := f.do(t, http.MethodPost, "/api/v1/rides", payload, header)
	rec, second := f.do(t, http.MethodPost, "/api/v1/rides", payload, header)

	if first["rideId"] != second["rideId"] {
		t.Errorf("expected the same ride id, got %v and %v", first["rideId"], second["rideId"])
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected the second response to be a replay")
	}
	if f.rides.CreateCallCount != 1 {
		t.Errorf("expected one ride stored, got %d", f.rides.CreateCallCount)
	}

	_, third := f.do(t, http.MethodPost, "/api/v1/rides", payload, http.Header{middleware.IdempotencyHeader: []string{"key-2"}})
	if third["rideId"] == first["rideId"] {
		t.Error("a new key must create a new ride")
	}
}

func TestHTTP_Health(t *testing.T) {
	t.Parallel()

	f := newAPIFixture()
	rec, body := f.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("unexpected health response %d %v", rec.Code, body)
	}
}
