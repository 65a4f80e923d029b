package model

type ValidateLicenseInput struct {
	LicenseKey string `json:"licenseKey"`
}

type CreateLicenseInput struct {
	UserName     string `json:"userName" validate:"required"`
	UserEmail    string `json:"userEmail" validate:"required"`
	DailyLimit   *int   `json:"dailyLimit" validate:"omitempty,min=0"`
	MonthlyLimit *int   `json:"monthlyLimit" validate:"omitempty,min=0"`
	// RFC 3339 或 YYYY-MM-DD，空表示永不过期
	ExpiryDate string `json:"expiryDate"`
}

type RecordUsageInput struct {
	LicenseKey string `json:"licenseKey" validate:"required"`
	Action     string `json:"action" validate:"required"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}

type DailyUsageInput struct {
	LicenseKey string `json:"licenseKey"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
