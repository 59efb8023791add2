// Package testutil builds migrated in-memory databases for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/db"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/model"
)

// Today is the fixed calendar date returned by Calendar.
const Today = "2026-10-14"

// Actors used across lifecycle tests.
var (
	Admin     = identity.Actor{ID: "admin-1", Role: identity.RoleAdmin}
	Collector = identity.Actor{ID: "collector-1", Role: identity.RoleCollector}
	Other     = identity.Actor{ID: "collector-2", Role: identity.RoleCollector}
	Operator  = identity.Actor{ID: "operator-1", Role: identity.RoleOperator}
)

// NewDB opens a private in-memory SQLite database with every partition
// migrated. It is closed when the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB, zap.NewNop()))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return gormDB
}

// Calendar returns a calendar pinned to noon of Today in UTC.
func Calendar() calendar.Calendar {
	noon := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	return calendar.WithClock(func() time.Time { return noon }, time.UTC)
}

// Authorizer returns the default owner-or-admin authorizer.
func Authorizer() identity.Authorizer {
	return identity.NewOwnerOrAdmin(identity.RoleAdmin)
}

// SeedCenters inserts one active collection center per code.
func SeedCenters(t *testing.T, gormDB *gorm.DB, codes ...string) []model.CollectionCenter {
	t.Helper()
	centers := make([]model.CollectionCenter, 0, len(codes))
	for _, code := range codes {
		centers = append(centers, model.CollectionCenter{ID: uuid.NewString(), Code: code, Name: "Center " + code, Active: true})
	}
	if len(centers) > 0 {
		require.NoError(t, gormDB.Create(&centers).Error)
	}
	return centers
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
