package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK           = "ok"
	resultInvalidInput = "invalid_input"
	resultInvalid      = "invalid"
	resultExpired      = "expired"
	resultForbidden    = "forbidden"
	resultUnauthorized = "unauthorized"
	resultError        = "error"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validations_total",
		Help: "License validation attempts by result.",
	}, []string{"result"})

	usageEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_usage_events_total",
		Help: "Usage record requests by result.",
	}, []string{"result"})

	licensesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "licenses_issued_total",
		Help: "License creation requests by result.",
	}, []string{"result"})

	adminLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_logins_total",
		Help: "Admin login attempts by result.",
	}, []string{"result"})
)
