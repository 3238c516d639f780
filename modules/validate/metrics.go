package validate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel     = "kind"
	severityLabel = "severity"
)

var (
	findingsReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_findings",
		Help: "The number of validation findings by kind and severity.",
	}, []string{
		kindLabel,
		severityLabel,
	})

	fixesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "validation_fixes_applied",
		Help: "The number of automatic fixes applied to stages.",
	})
)

func instrumentFindings(findings []Finding) {
	for _, f := range findings {
		findingsReported.With(prometheus.Labels{
			kindLabel:     string(f.Kind),
			severityLabel: string(f.Severity),
		}).Inc()
	}
}
