package service

import "time"

// 单次异步推送的最长耗时
const defaultPublishTimeout = 30 * time.Second

type options struct {
	now            func() time.Time
	loc            *time.Location
	publisher      LicensePublisher
	publishTimeout time.Duration
}

// Option 配置服务的时钟、时区等
type Option func(*options)

// WithClock 替换当前时间来源，测试中用于构造跨日数据
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation 指定"自然日"所在时区，默认 time.Local
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

// WithPublisher 新建 License 后异步推送到外部（如 Google Sheets）
func WithPublisher(p LicensePublisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithPublishTimeout 限制单次推送耗时，超时后放弃
func WithPublishTimeout(d time.Duration) Option {
	return func(o *options) { o.publishTimeout = d }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, loc: time.Local, publishTimeout: defaultPublishTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// startOfDay 返回 t 在 loc 时区当天零点
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
