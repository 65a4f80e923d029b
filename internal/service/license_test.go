package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"license-server/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newLicenseService(t *testing.T, clock *fakeClock, opts ...Option) (*LicenseService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	opts = append([]Option{WithClock(clock.Now), WithLocation(testLoc)}, opts...)
	return NewLicenseService(db, zap.NewNop(), opts...), db
}

func TestValidate(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	client := ClientInfo{IPAddress: "10.0.0.1", UserAgent: "plugin/1.0"}

	tests := []struct {
		name       string
		license    *model.License
		key        string
		wantErr    error
		wantLogs   int64
		wantAction string
	}{
		{
			name:       "active_without_expiry",
			license:    &model.License{LicenseKey: "AAAA-AAAA-AAAA-AAAA", IsActive: true, DailyLimit: 10, MonthlyLimit: 300},
			key:        "AAAA-AAAA-AAAA-AAAA",
			wantLogs:   1,
			wantAction: model.ActionLoginSuccess,
		},
		{
			name:       "active_future_expiry",
			license:    &model.License{LicenseKey: "BBBB-BBBB-BBBB-BBBB", IsActive: true, ExpiryDate: timePtr(now.Add(time.Hour))},
			key:        "BBBB-BBBB-BBBB-BBBB",
			wantLogs:   1,
			wantAction: model.ActionLoginSuccess,
		},
		{
			name:       "expiry_equal_to_now_is_valid",
			license:    &model.License{LicenseKey: "CCCC-CCCC-CCCC-CCCC", IsActive: true, ExpiryDate: timePtr(now)},
			key:        "CCCC-CCCC-CCCC-CCCC",
			wantLogs:   1,
			wantAction: model.ActionLoginSuccess,
		},
		{
			name:     "expired_writes_no_log",
			license:  &model.License{LicenseKey: "DDDD-DDDD-DDDD-DDDD", IsActive: true, ExpiryDate: timePtr(now.Add(-time.Second))},
			key:      "DDDD-DDDD-DDDD-DDDD",
			wantErr:  ErrLicenseExpired,
			wantLogs: 0,
		},
		{
			name:       "inactive_with_future_expiry",
			license:    &model.License{LicenseKey: "EEEE-EEEE-EEEE-EEEE", IsActive: false, ExpiryDate: timePtr(now.AddDate(1, 0, 0))},
			key:        "EEEE-EEEE-EEEE-EEEE",
			wantErr:    ErrInvalidLicense,
			wantLogs:   1,
			wantAction: model.ActionInvalidAttempt,
		},
		{
			name:       "inactive_and_expired",
			license:    &model.License{LicenseKey: "FFFF-FFFF-FFFF-FFFF", IsActive: false, ExpiryDate: timePtr(now.AddDate(-1, 0, 0))},
			key:        "FFFF-FFFF-FFFF-FFFF",
			wantErr:    ErrInvalidLicense,
			wantLogs:   1,
			wantAction: model.ActionInvalidAttempt,
		},
		{
			name:       "unknown_key",
			key:        "ZZZZ-ZZZZ-ZZZZ-ZZZZ",
			wantErr:    ErrInvalidLicense,
			wantLogs:   1,
			wantAction: model.ActionInvalidAttempt,
		},
		{
			name:       "key_is_case_sensitive",
			license:    &model.License{LicenseKey: "GGGG-GGGG-GGGG-GGGG", IsActive: true},
			key:        "gggg-gggg-gggg-gggg",
			wantErr:    ErrInvalidLicense,
			wantLogs:   1,
			wantAction: model.ActionInvalidAttempt,
		},
		{
			name:     "empty_key",
			key:      "",
			wantErr:  ErrInvalidInput,
			wantLogs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newLicenseService(t, &fakeClock{now: now})
			if tt.license != nil {
				seedLicense(t, db, *tt.license)
			}

			res, err := svc.Validate(context.Background(), tt.key, client)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				require.NotNil(t, res)
				assert.Equal(t, "tester", res.Name)
				assert.Equal(t, "tester@example.com", res.Email)
				assert.Equal(t, tt.license.DailyLimit, res.DailyLimit)
				assert.Equal(t, tt.license.MonthlyLimit, res.MonthlyLimit)
			}

			var logs []model.UsageLog
			require.NoError(t, db.Find(&logs).Error)
			require.Len(t, logs, int(tt.wantLogs))
			if tt.wantLogs == 1 {
				assert.Equal(t, tt.key, logs[0].LicenseKey)
				assert.Equal(t, tt.wantAction, logs[0].Action)
				assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
				assert.Equal(t, "plugin/1.0", logs[0].UserAgent)
				assert.True(t, now.Equal(logs[0].Timestamp))
			}
		})
	}
}

func TestValidateCountsResults(t *testing.T) {
	svc, db := newLicenseService(t, &fakeClock{now: time.Now()})
	seedLicense(t, db, model.License{LicenseKey: "AAAA-1111-AAAA-1111", IsActive: true})

	okBefore := testutil.ToFloat64(validationsTotal.WithLabelValues(resultOK))
	invalidBefore := testutil.ToFloat64(validationsTotal.WithLabelValues(resultInvalid))

	_, err := svc.Validate(context.Background(), "AAAA-1111-AAAA-1111", ClientInfo{})
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), "nope", ClientInfo{})
	require.ErrorIs(t, err, ErrInvalidLicense)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(validationsTotal.WithLabelValues(resultOK)))
	assert.Equal(t, invalidBefore+1, testutil.ToFloat64(validationsTotal.WithLabelValues(resultInvalid)))
}

func TestCreate(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		input       model.CreateLicenseInput
		wantErr     error
		wantDaily   int
		wantMonthly int
		wantExpiry  *time.Time
	}{
		{
			name:        "defaults",
			input:       model.CreateLicenseInput{UserName: "张三", UserEmail: "zs@example.com"},
			wantDaily:   10,
			wantMonthly: 300,
		},
		{
			name:        "explicit_limits",
			input:       model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", DailyLimit: intPtr(5), MonthlyLimit: intPtr(50)},
			wantDaily:   5,
			wantMonthly: 50,
		},
		{
			name:        "explicit_zero_kept",
			input:       model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", DailyLimit: intPtr(0)},
			wantDaily:   0,
			wantMonthly: 300,
		},
		{
			name:        "date_only_expiry_is_end_of_local_day",
			input:       model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", ExpiryDate: "2024-12-31"},
			wantDaily:   10,
			wantMonthly: 300,
			wantExpiry:  timePtr(time.Date(2025, 1, 1, 0, 0, 0, 0, testLoc).Add(-time.Nanosecond)),
		},
		{
			name:        "rfc3339_expiry",
			input:       model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", ExpiryDate: "2024-12-31T10:00:00Z"},
			wantDaily:   10,
			wantMonthly: 300,
			wantExpiry:  timePtr(time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC)),
		},
		{
			name:        "local_datetime_expiry",
			input:       model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", ExpiryDate: "2024-12-31T08:00"},
			wantDaily:   10,
			wantMonthly: 300,
			wantExpiry:  timePtr(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:    "missing_user_name",
			input:   model.CreateLicenseInput{UserEmail: "a@example.com"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "missing_user_email",
			input:   model.CreateLicenseInput{UserName: "a"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "negative_limit",
			input:   model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", MonthlyLimit: intPtr(-1)},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "bad_expiry",
			input:   model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com", ExpiryDate: "next tuesday"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newLicenseService(t, &fakeClock{now: now})

			license, err := svc.Create(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var n int64
				db.Model(&model.License{}).Count(&n)
				assert.Zero(t, n)
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, keyPattern, license.LicenseKey)

			var stored model.License
			require.NoError(t, db.Where("license_key = ?", license.LicenseKey).First(&stored).Error)
			assert.Equal(t, tt.input.UserName, stored.UserName)
			assert.Equal(t, tt.input.UserEmail, stored.UserEmail)
			assert.Equal(t, tt.wantDaily, stored.DailyLimit)
			assert.Equal(t, tt.wantMonthly, stored.MonthlyLimit)
			assert.True(t, stored.IsActive)
			assert.True(t, now.Equal(stored.CreatedAt))
			if tt.wantExpiry == nil {
				assert.Nil(t, stored.ExpiryDate)
			} else {
				require.NotNil(t, stored.ExpiryDate)
				assert.True(t, tt.wantExpiry.Equal(*stored.ExpiryDate), "got %s", stored.ExpiryDate)
			}
		})
	}
}

func TestCreateIssuesDistinctKeys(t *testing.T) {
	svc, _ := newLicenseService(t, &fakeClock{now: time.Now()})

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		l, err := svc.Create(context.Background(), model.CreateLicenseInput{
			UserName:  fmt.Sprintf("user%d", i),
			UserEmail: fmt.Sprintf("user%d@example.com", i),
		})
		require.NoError(t, err)
		assert.Regexp(t, keyPattern, l.LicenseKey)
		seen[l.LicenseKey] = struct{}{}
	}
	assert.Len(t, seen, 50)
}

func TestLicenseKeyUniqueConstraint(t *testing.T) {
	db := newTestDB(t)
	seedLicense(t, db, model.License{LicenseKey: "DUPE-DUPE-DUPE-DUPE", IsActive: true})

	err := db.Create(&model.License{LicenseKey: "DUPE-DUPE-DUPE-DUPE", UserName: "x", UserEmail: "x@example.com"}).Error
	assert.Error(t, err)
}

type recordingPublisher struct {
	ch chan model.License
}

func (p *recordingPublisher) PublishLicense(_ context.Context, l *model.License) error {
	p.ch <- *l
	return nil
}

func TestCreatePublishesLicense(t *testing.T) {
	pub := &recordingPublisher{ch: make(chan model.License, 1)}
	svc, _ := newLicenseService(t, &fakeClock{now: time.Now()}, WithPublisher(pub))

	license, err := svc.Create(context.Background(), model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com"})
	require.NoError(t, err)

	select {
	case got := <-pub.ch:
		assert.Equal(t, license.LicenseKey, got.LicenseKey)
		assert.Equal(t, license.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("license was not published")
	}
}

// blockingPublisher 阻塞到 ctx 结束或 release 关闭，结果写入 done
type blockingPublisher struct {
	release chan struct{}
	done    chan error
}

func (p *blockingPublisher) PublishLicense(ctx context.Context, _ *model.License) error {
	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-p.release:
	}
	p.done <- err
	return err
}

func TestCreatePublishLifecycle(t *testing.T) {
	tests := []struct {
		name        string
		timeout     time.Duration
		waitFor     time.Duration
		releaseLate bool
		wantWaitErr error
		wantPubErr  error
	}{
		{
			name:       "publish_timeout_cancels_stuck_publisher",
			timeout:    50 * time.Millisecond,
			waitFor:    2 * time.Second,
			wantPubErr: context.DeadlineExceeded,
		},
		{
			name:        "wait_returns_when_context_expires_first",
			timeout:     time.Minute,
			waitFor:     50 * time.Millisecond,
			releaseLate: true,
			wantWaitErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &blockingPublisher{release: make(chan struct{}), done: make(chan error, 1)}
			svc, _ := newLicenseService(t, &fakeClock{now: time.Now()},
				WithPublisher(pub), WithPublishTimeout(tt.timeout))

			_, err := svc.Create(context.Background(), model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com"})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), tt.waitFor)
			defer cancel()
			assert.ErrorIs(t, svc.WaitPublished(ctx), tt.wantWaitErr)

			if tt.releaseLate {
				close(pub.release)
			}
			select {
			case got := <-pub.done:
				assert.ErrorIs(t, got, tt.wantPubErr)
			case <-time.After(2 * time.Second):
				t.Fatal("publisher did not return")
			}
			require.NoError(t, svc.WaitPublished(context.Background()))
		})
	}
}

func TestWaitPublishedWaitsForPendingPublish(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{}), done: make(chan error, 1)}
	svc, _ := newLicenseService(t, &fakeClock{now: time.Now()}, WithPublisher(pub))

	_, err := svc.Create(context.Background(), model.CreateLicenseInput{UserName: "a", UserEmail: "a@example.com"})
	require.NoError(t, err)

	waited := make(chan error, 1)
	go func() { waited <- svc.WaitPublished(context.Background()) }()

	select {
	case <-waited:
		t.Fatal("WaitPublished returned before publish finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(pub.release)
	select {
	case err := <-waited:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitPublished did not return")
	}
	assert.NoError(t, <-pub.done)
}

func TestWaitPublishedWithoutPublisher(t *testing.T) {
	svc, _ := newLicenseService(t, &fakeClock{now: time.Now()})
	assert.NoError(t, svc.WaitPublished(context.Background()))
}

func TestList(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, db := newLicenseService(t, &fakeClock{now: base})

	for i := 0; i < 45; i++ {
		seedLicense(t, db, model.License{
			LicenseKey: fmt.Sprintf("KEY-%04d", i),
			IsActive:   true,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}

	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
		wantRows  int
		wantPages int64
		wantFirst string
	}{
		{name: "second_page", page: 2, limit: 20, wantPage: 2, wantLimit: 20, wantRows: 20, wantPages: 3, wantFirst: "KEY-0024"},
		{name: "last_page", page: 3, limit: 20, wantPage: 3, wantLimit: 20, wantRows: 5, wantPages: 3, wantFirst: "KEY-0004"},
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: 20, wantRows: 20, wantPages: 3, wantFirst: "KEY-0044"},
		{name: "beyond_last_page", page: 9, limit: 20, wantPage: 9, wantLimit: 20, wantRows: 0, wantPages: 3},
		{name: "limit_capped", page: 1, limit: 500, wantPage: 1, wantLimit: 100, wantRows: 45, wantPages: 1, wantFirst: "KEY-0044"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.List(context.Background(), tt.page, tt.limit)
			require.NoError(t, err)
			assert.Len(t, res.Licenses, tt.wantRows)
			assert.NotNil(t, res.Licenses)
			assert.Equal(t, tt.wantPage, res.Pagination.Page)
			assert.Equal(t, tt.wantLimit, res.Pagination.Limit)
			assert.Equal(t, int64(45), res.Pagination.Total)
			assert.Equal(t, tt.wantPages, res.Pagination.Pages)
			if tt.wantFirst != "" {
				assert.Equal(t, tt.wantFirst, res.Licenses[0].LicenseKey)
			}
		})
	}
}

func TestParseExpiry(t *testing.T) {
	got, err := parseExpiry("", testLoc)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseExpiry("2030-01-02T03:04:05+08:00", testLoc)
	require.NoError(t, err)
	assert.True(t, time.Date(2030, 1, 1, 19, 4, 5, 0, time.UTC).Equal(*got))

	_, err = parseExpiry("2030-13-45", testLoc)
	assert.Error(t, err)
}
