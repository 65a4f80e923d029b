package service

import (
	"testing"
	"time"

	"license-server/internal/database"
	"license-server/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 东八区，便于验证"本地自然日"与 UTC 日期不同的情况
var testLoc = time.FixedZone("UTC+8", 8*60*60)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func seedLicense(t *testing.T, db *gorm.DB, l model.License) model.License {
	t.Helper()
	if l.UserName == "" {
		l.UserName = "tester"
	}
	if l.UserEmail == "" {
		l.UserEmail = "tester@example.com"
	}
	require.NoError(t, db.Create(&l).Error)
	return l
}

func seedLog(t *testing.T, db *gorm.DB, key, action string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&model.UsageLog{
		LicenseKey: key,
		Action:     action,
		Timestamp:  at.UTC(),
	}).Error)
}

func countLogs(t *testing.T, db *gorm.DB, key string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.UsageLog{}).Where("license_key = ?", key).Count(&n).Error)
	return n
}

func timePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

func intPtr(v int) *int { return &v }
