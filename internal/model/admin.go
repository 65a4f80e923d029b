package model

import (
	"time"
)

type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminIdentity 登录成功后返回给调用方的身份信息
type AdminIdentity struct {
	Username string `json:"username"`
}
