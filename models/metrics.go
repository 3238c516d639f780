package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	appKeyLabel = "app_key"
)

var (
	stageSessionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stagekit_stage_sessions",
		Help: "The number of opened stage editing sessions.",
	}, []string{appKeyLabel})

	stageSessionCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagekit_stage_sessions_total",
		Help: "The total number of opened stage editing sessions.",
	}, []string{appKeyLabel})
)

func instrumentIncreaseSessionGauge(appKey string) {
	stageSessionCount.
		With(prometheus.Labels{appKeyLabel: appKey}).
		Inc()
}

func instrumentDecreaseSessionGauge(appKey string) {
	stageSessionCount.
		With(prometheus.Labels{appKeyLabel: appKey}).
		Dec()
}

func instrumentCountSession(appKey string) {
	stageSessionCountTotal.
		With(prometheus.Labels{appKeyLabel: appKey}).
		Inc()
}
