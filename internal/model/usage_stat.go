package model

import "time"

// UsageStat 按 (日期, 动作) 聚合的使用次数
type UsageStat struct {
	Date   string `json:"date"`
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// StatsFilter 管理端统计筛选条件，均为可选
type StatsFilter struct {
	LicenseKey string
	StartDate  string
	EndDate    string
}

// ValidationResult 验证成功时返回的授权信息
type ValidationResult struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	ExpiryDate   *time.Time `json:"expiryDate"`
	DailyLimit   int        `json:"-"`
	MonthlyLimit int        `json:"-"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPagination pages = ceil(total/limit)
func NewPagination(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

type LicensePage struct {
	Licenses   []License  `json:"licenses"`
	Pagination Pagination `json:"pagination"`
}
