package snap

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel    = "mode"
	outcomeLabel = "outcome"

	outcomeSnapped   = "snapped"
	outcomeUnchanged = "unchanged"
	outcomeRejected  = "rejected"
)

var snapRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "snap_requests",
	Help: "The number of snap requests by mode and outcome.",
}, []string{
	modeLabel,
	outcomeLabel,
})

func instrumentSnap(mode Mode, res Result) {
	outcome := outcomeUnchanged
	if res.Snapped() {
		outcome = outcomeSnapped
	}

	snapRequests.With(prometheus.Labels{
		modeLabel:    string(mode),
		outcomeLabel: outcome,
	}).Inc()
}

func instrumentRejectedSnap(mode Mode) {
	snapRequests.With(prometheus.Labels{
		modeLabel:    string(mode),
		outcomeLabel: outcomeRejected,
	}).Inc()
}
