package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"license-server/internal/model"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminService 校验管理员账号密码，不签发会话
type AdminService struct {
	db  *gorm.DB
	log *zap.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

func NewAdminService(db *gorm.DB, log *zap.Logger) *AdminService {
	return &AdminService{db: db, log: log.Named("admin")}
}

// Login 用户名不存在与密码错误返回同一个 ErrUnauthorized
func (s *AdminService) Login(ctx context.Context, in model.LoginInput) (*model.AdminIdentity, error) {
	if err := validateInput(in); err != nil {
		adminLoginsTotal.WithLabelValues(resultInvalidInput).Inc()
		return nil, err
	}

	var admin model.Admin
	err := s.db.WithContext(ctx).Where("username = ?", in.Username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// 仍做一次哈希比较，使两种失败耗时接近
		_ = bcrypt.CompareHashAndPassword(s.fallbackHash(), []byte(in.Password))
		adminLoginsTotal.WithLabelValues(resultUnauthorized).Inc()
		return nil, ErrUnauthorized
	}
	if err != nil {
		adminLoginsTotal.WithLabelValues(resultError).Inc()
		s.log.Error("query admin failed", zap.Error(err))
		return nil, fmt.Errorf("%w: query admin", ErrInternal)
	}

	err = bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(in.Password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		adminLoginsTotal.WithLabelValues(resultUnauthorized).Inc()
		return nil, ErrUnauthorized
	}
	if err != nil {
		adminLoginsTotal.WithLabelValues(resultError).Inc()
		s.log.Error("compare password hash failed", zap.String("username", admin.Username), zap.Error(err))
		return nil, fmt.Errorf("%w: verify password", ErrInternal)
	}

	adminLoginsTotal.WithLabelValues(resultOK).Inc()
	s.log.Info("admin logged in", zap.String("username", admin.Username))
	return &model.AdminIdentity{Username: admin.Username}, nil
}

func (s *AdminService) fallbackHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
		if err != nil {
			s.log.Warn("generate fallback hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
