package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes recorded on the submissions counter.
const (
	OutcomeAccepted        = "accepted"
	OutcomeNetworkRequired = "network_required"
	OutcomeNoSession       = "no_active_session"
	OutcomeInvalidCode     = "invalid_code"
	OutcomeDuplicate       = "duplicate"
	OutcomeError           = "error"
)

var (
	// SubmissionsTotal counts attendance submissions by outcome.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rollcall_submissions_total",
		Help: "Attendance submissions by outcome.",
	}, []string{"outcome"})

	// SessionsStartedTotal counts lecturer session starts.
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_started_total",
		Help: "Attendance sessions started.",
	})
)
