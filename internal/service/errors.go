package service

import "errors"

// 服务层错误分类，handler 通过 errors.Is 映射为状态码和固定提示
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidLicense = errors.New("invalid license")
	ErrLicenseExpired = errors.New("license expired")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal error")
)
