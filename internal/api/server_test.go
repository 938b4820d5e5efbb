package api

import (
	"math/rand/v2"
	"net/http"
	"testing"
	"time"

	"github.com/crossway-systems/signalctl/internal/config"
	"github.com/crossway-systems/signalctl/internal/signal"
	"github.com/crossway-systems/signalctl/internal/testutil"
	"github.com/crossway-systems/signalctl/internal/timeutil"
)

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	engine := signal.NewEngine(signal.DefaultConfig(), clock, rand.NewPCG(1, 1))
	s := NewServer(engine, config.EmptySignalConfig())
	return s, s.ServeMux()
}

type statusResponse struct {
	Lanes map[string]struct {
		State        string `json:"state"`
		VehicleCount int    `json:"vehicle_count"`
		IsReal       bool   `json:"is_real"`
		TrafficLevel string `json:"traffic_level"`
	} `json:"lanes"`
	CurrentGreen   string `json:"current_green"`
	GreenRemaining int    `json:"green_remaining"`
	EmergencyMode  bool   `json:"emergency_mode"`
	EmergencyLane  string `json:"emergency_lane"`
}

func TestShowStatus(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/signal/status"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var status statusResponse
	testutil.DecodeJSONBody(t, rec, &status)

	if status.CurrentGreen != "north" {
		t.Errorf("current_green = %q, want north", status.CurrentGreen)
	}
	if status.GreenRemaining != 15 {
		t.Errorf("green_remaining = %d, want 15", status.GreenRemaining)
	}
	if len(status.Lanes) != 4 {
		t.Fatalf("lanes = %d, want 4", len(status.Lanes))
	}
	if !status.Lanes["north"].IsReal {
		t.Error("north should be flagged as the real lane")
	}
	if status.Lanes["east"].IsReal {
		t.Error("east should be flagged as simulated")
	}
}

func TestShowStatusMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/signal/status"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestUpdateCount(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/signal/count?vehicles=25"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/signal/status"))
	var status statusResponse
	testutil.DecodeJSONBody(t, rec, &status)
	if got := status.Lanes["north"].VehicleCount; got != 25 {
		t.Errorf("north vehicle_count = %d, want 25", got)
	}
	if got := status.Lanes["north"].TrafficLevel; got != "high" {
		t.Errorf("north traffic_level = %q, want high", got)
	}
}

func TestUpdateCountValidation(t *testing.T) {
	_, mux := newTestServer(t)

	tests := []struct {
		name string
		url  string
		code int
	}{
		{"missing parameter", "/signal/count", http.StatusBadRequest},
		{"not a number", "/signal/count?vehicles=many", http.StatusBadRequest},
		{"negative", "/signal/count?vehicles=-3", http.StatusBadRequest},
		{"too large", "/signal/count?vehicles=101", http.StatusBadRequest},
		{"upper bound ok", "/signal/count?vehicles=100", http.StatusOK},
		{"zero ok", "/signal/count?vehicles=0", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewTestRecorder()
			mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, tt.url))
			testutil.AssertStatusCode(t, rec.Code, tt.code)
		})
	}
}

func TestEmergencyTriggerAndStop(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/signal/emergency?lane=east"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var status statusResponse
	testutil.DecodeJSONBody(t, rec, &status)
	if !status.EmergencyMode {
		t.Error("emergency_mode should be true after trigger")
	}
	if status.Lanes["east"].State != "green" {
		t.Errorf("east state = %q, want green", status.Lanes["east"].State)
	}
	for _, lane := range []string{"north", "south", "west"} {
		if status.Lanes[lane].State != "red" {
			t.Errorf("%s state = %q, want red", lane, status.Lanes[lane].State)
		}
	}

	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/signal/emergency/stop"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	testutil.DecodeJSONBody(t, rec, &status)
	if status.EmergencyMode {
		t.Error("emergency_mode should clear after stop")
	}
	if status.CurrentGreen != "south" {
		t.Errorf("current_green = %q, want south (lane after east)", status.CurrentGreen)
	}
}

func TestEmergencyInvalidLane(t *testing.T) {
	_, mux := newTestServer(t)

	for _, url := range []string{"/signal/emergency", "/signal/emergency?lane=nowhere"} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, url))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}

	// state must be untouched
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/signal/status"))
	var status statusResponse
	testutil.DecodeJSONBody(t, rec, &status)
	if status.EmergencyMode {
		t.Error("rejected trigger must not activate emergency mode")
	}
}

func TestTickSignal(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/signal/tick?seconds=15"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		TickedSeconds  int            `json:"ticked_seconds"`
		JunctionStatus statusResponse `json:"junction_status"`
	}
	testutil.DecodeJSONBody(t, rec, &resp)
	if resp.TickedSeconds != 15 {
		t.Errorf("ticked_seconds = %d, want 15", resp.TickedSeconds)
	}
	if resp.JunctionStatus.CurrentGreen != "east" {
		t.Errorf("current_green = %q, want east after the startup phase expires", resp.JunctionStatus.CurrentGreen)
	}
}

func TestTickSignalValidation(t *testing.T) {
	_, mux := newTestServer(t)

	for _, url := range []string{"/signal/tick?seconds=0", "/signal/tick?seconds=61", "/signal/tick?seconds=soon"} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, url))
		testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
	}

	// seconds defaults to 1
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/signal/tick"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestComputeDuration(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/signal/compute?vehicles=20"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		VehicleCount         int    `json:"vehicle_count"`
		GreenDurationSeconds int    `json:"green_duration_seconds"`
		TrafficLevel         string `json:"traffic_level"`
	}
	testutil.DecodeJSONBody(t, rec, &resp)
	if resp.GreenDurationSeconds != 60 {
		t.Errorf("green_duration_seconds = %d, want 60", resp.GreenDurationSeconds)
	}
	if resp.TrafficLevel != "high" {
		t.Errorf("traffic_level = %q, want high", resp.TrafficLevel)
	}

	// read-only: the junction state must be untouched
	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/signal/status"))
	var status statusResponse
	testutil.DecodeJSONBody(t, rec, &status)
	if status.GreenRemaining != 15 {
		t.Errorf("compute mutated the junction: green_remaining = %d, want 15", status.GreenRemaining)
	}
}

func TestShowConfigDefaults(t *testing.T) {
	_, mux := newTestServer(t)

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/config"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var cfg map[string]interface{}
	testutil.DecodeJSONBody(t, rec, &cfg)
	if cfg["sim_refresh_interval"] != "10s" {
		t.Errorf("sim_refresh_interval = %v, want 10s", cfg["sim_refresh_interval"])
	}
	if cfg["max_simulated_vehicles"] != float64(20) {
		t.Errorf("max_simulated_vehicles = %v, want 20", cfg["max_simulated_vehicles"])
	}
}
