package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records the calls the simulator makes.
type fakeAPI struct {
	mu     sync.Mutex
	paths  []string
	bodies []map[string]interface{}
	auth   []string
	status int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies = append(f.bodies, body)

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if strings.HasSuffix(r.URL.Path, "/start") || strings.HasSuffix(r.URL.Path, "/done") {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
		return
	}
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"success":true,"data":{"id":"rec-1"}}`))
}

func newFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	api := &fakeAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return api, server.URL + "/api"
}

func TestCreateTeam(t *testing.T) {
	api, url := newFakeAPI(t)
	authToken = "sim-token"
	defer func() { authToken = "" }()

	id, err := createTeam(url, "Mechanical Crew", 3)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", id)
	assert.Equal(t, []string{"/api/teams"}, api.paths)
	assert.Equal(t, "Bearer sim-token", api.auth[0])
	assert.Equal(t, "Mechanical Crew", api.bodies[0]["name"])
	assert.Len(t, api.bodies[0]["member_ids"], 3)
}

func TestCreateEquipmentFailure(t *testing.T) {
	api, url := newFakeAPI(t)
	api.status = http.StatusUnauthorized

	_, err := createEquipment(url, randomEquipment("team-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRandomEquipment(t *testing.T) {
	for i := 0; i < 20; i++ {
		eq := randomEquipment("team-1")
		names, ok := catalog[eq.Category]
		require.True(t, ok, eq.Category)
		assert.Contains(t, names, eq.Name)
		assert.Contains(t, locations, eq.Location)
		assert.Equal(t, "team-1", eq.MaintenanceTeamID)
		assert.Positive(t, eq.MaintenanceInterval)
	}
}

func TestBreakdownPriority(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		wear float64
		want string
	}{
		{0.2, "1"},
		{0.75, "2"},
		{0.95, "3"},
	}
	for _, tt := range tests {
		req := breakdownRequest(&Asset{EquipmentID: "eq-1", Wear: tt.wear}, now)
		assert.Equal(t, tt.want, req.Priority)
		assert.Equal(t, "corrective", req.MaintenanceType)
		assert.Equal(t, "2024-06-15", req.ScheduleDate)
		assert.Contains(t, faults, req.Description)
	}

	pm := preventiveRequest(&Asset{EquipmentID: "eq-1"}, now)
	assert.Equal(t, "preventive", pm.MaintenanceType)
	assert.Greater(t, pm.ScheduleDate, "2024-06-15")
}

func TestStepLifecycle(t *testing.T) {
	api, url := newFakeAPI(t)
	now := time.Now()

	// Fully worn equipment always breaks down
	a := &Asset{EquipmentID: "eq-1", Wear: 1}
	step(url, a, now)
	assert.Equal(t, "rec-1", a.OpenRequest)
	assert.Equal(t, "/api/maintenance", api.paths[0])
	assert.Equal(t, "eq-1", api.bodies[0]["equipment_id"])

	step(url, a, now)
	assert.True(t, a.Started)
	assert.Equal(t, "/api/maintenance/rec-1/start", api.paths[1])

	step(url, a, now)
	assert.Equal(t, "/api/maintenance/rec-1/done", api.paths[2])
	assert.Empty(t, a.OpenRequest)
	assert.False(t, a.Started)
	assert.Zero(t, a.Wear)
}

func TestStepKeepsRequestOnFailure(t *testing.T) {
	api, url := newFakeAPI(t)
	api.status = http.StatusBadRequest

	a := &Asset{EquipmentID: "eq-1", OpenRequest: "rec-9"}
	step(url, a, time.Now())
	assert.Equal(t, "rec-9", a.OpenRequest)
	assert.False(t, a.Started)
}
