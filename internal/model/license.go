package model

import (
	"time"
)

const (
	DefaultDailyLimit   = 10
	DefaultMonthlyLimit = 300
)

type License struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	LicenseKey   string     `json:"license_key" gorm:"uniqueIndex;not null"`
	UserName     string     `json:"user_name" gorm:"not null"`
	UserEmail    string     `json:"user_email" gorm:"not null"`
	DailyLimit   int        `json:"daily_limit" gorm:"not null"`
	MonthlyLimit int        `json:"monthly_limit" gorm:"not null"`
	ExpiryDate   *time.Time `json:"expiry_date"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired 有效期不为空且严格早于 now
func (l *License) Expired(now time.Time) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now)
}

// ValidAt 当前是否有效：启用且未过期
func (l *License) ValidAt(now time.Time) bool {
	return l.IsActive && !l.Expired(now)
}
