package model

import (
	"time"
)

const (
	ActionInvalidAttempt  = "invalid_attempt"
	ActionLoginSuccess    = "login_success"
	ActionReportGenerated = "report_generated"
)

// UsageLog 只追加的使用记录，不更新也不删除
type UsageLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	LicenseKey string    `json:"license_key" gorm:"not null;index:idx_usage_key_ts,priority:1"`
	Action     string    `json:"action" gorm:"not null"` // invalid_attempt, login_success, report_generated ...
	Timestamp  time.Time `json:"timestamp" gorm:"not null;index:idx_usage_key_ts,priority:2"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
}
