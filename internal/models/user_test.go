package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/maintenance-tracker/internal/db"
	"github.com/ukydev/maintenance-tracker/internal/orm"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"admin role", RoleAdmin, true},
		{"user role", RoleUser, true},
		{"invalid role", "invalid", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidRole(tt.role))
		})
	}
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleAdmin, RoleFor(true))
	assert.Equal(t, RoleUser, RoleFor(false))
}

func TestPortalUser_Defaults(t *testing.T) {
	mapper := orm.NewMapper(db.NewMemoryStore(), PortalUserModel)
	rec, err := mapper.Create(context.Background(), orm.Values{
		"name":          "Jane",
		"email":         "jane@example.com",
		"password_hash": "hash",
	})
	require.NoError(t, err)

	user := PortalUser{rec}
	assert.True(t, user.Active())
	assert.False(t, user.IsAdmin())
	assert.Equal(t, int64(0), user.LoginAttempts())
	assert.Equal(t, RoleUser, user.Role())
	_, locked := user.LockedUntil()
	assert.False(t, locked)

	public := user.Public()
	assert.NotContains(t, public, "password_hash")
	assert.Equal(t, "jane@example.com", public["email"])
}

func TestStageStateMappings(t *testing.T) {
	for state, stage := range StageForState {
		assert.Equal(t, state, StateForStage[stage], "stage %s", stage)
	}
	assert.True(t, IsTerminal(StateDone))
	assert.True(t, IsTerminal(StateCancelled))
	assert.False(t, IsTerminal(StateNew))
	assert.False(t, IsTerminal(StateInProgress))
}

func TestIndexes(t *testing.T) {
	byCollection := map[string]int{}
	for _, spec := range Indexes() {
		byCollection[spec.Collection]++
	}
	assert.Equal(t, 6, byCollection["equipment"])
	assert.Equal(t, 2, byCollection["maintenance_team"])
	assert.Equal(t, 8, byCollection["maintenance_request"])
	assert.Equal(t, 2, byCollection["portal_user"])

	var emailUnique bool
	for _, spec := range PortalUserModel.Indexes() {
		if spec.Keys[0].Key == "email" {
			emailUnique = spec.Unique
		}
	}
	assert.True(t, emailUnique)
}

func TestRequestDefaults(t *testing.T) {
	mapper := orm.NewMapper(db.NewMemoryStore(), RequestModel)
	rec, err := mapper.Create(context.Background(), orm.Values{
		"name":          "MNT-1",
		"equipment_id":  "65f000000000000000000001",
		"team_id":       "65f000000000000000000002",
		"description":   "leak",
		"schedule_date": "2024-01-01",
	})
	require.NoError(t, err)

	req := Request{rec}
	assert.Equal(t, StateNew, req.State())
	assert.Equal(t, StageNew, req.Stage())
	assert.Equal(t, PriorityNormal, req.Priority())
	assert.Equal(t, TypeCorrective, req.MaintenanceType())
	assert.Equal(t, 2.0, req.Duration())
	assert.Equal(t, "2024-01-01", req.ScheduleDate())
	assert.NotEmpty(t, rec.String("request_date"))
}
