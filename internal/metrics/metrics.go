package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "logins_total",
		Help:      "Session establishments by result (ok, role_rejected, storage_error).",
	}, []string{"result"})

	Logouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "logouts_total",
		Help:      "Logouts by outcome of the remote invalidation (ok, failed, skipped).",
	}, []string{"remote"})

	Invalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "session_invalidations_total",
		Help:      "Sessions cleared without a logout, by reason (unauthorized, expired).",
	}, []string{"reason"})

	Restores = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "session_restores_total",
		Help:      "Completed session restorations by outcome (restored, empty, expired, cancelled, error).",
	}, []string{"outcome"})

	ActiveStores = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dashboard",
		Name:      "session_stores",
		Help:      "Per-browser session stores currently held in memory.",
	})

	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Name:      "backend_requests_total",
		Help:      "Requests sent to the backend API by method and status code.",
	}, []string{"method", "code"})
)
