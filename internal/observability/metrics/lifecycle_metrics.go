package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ReservationOutcomeReserved = "reserved"
	ReservationOutcomeExceeded = "quota_exceeded"
	ReservationOutcomeReleased = "released"
	ReservationOutcomeFailed   = "failed"
	SubmissionOutcomeRecorded  = "recorded"
	SubmissionOutcomeDuplicate = "already_submitted"
	SubmissionOutcomeGone      = "gone"
	SubmissionOutcomeInvalid   = "invalid"
	SubmissionOutcomeFailed    = "failed"
)

// LifecycleMetrics counts invite state changes, seat reservations and result submissions.
type LifecycleMetrics struct {
	transitions  *prometheus.CounterVec
	reservations *prometheus.CounterVec
	submissions  *prometheus.CounterVec
}

var (
	lifecycleOnce    sync.Once
	lifecycleMetrics *LifecycleMetrics
)

// Lifecycle returns the process-wide lifecycle registry.
func Lifecycle(cfg Config) *LifecycleMetrics {
	lifecycleOnce.Do(func() {
		lifecycleMetrics = NewLifecycleMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return lifecycleMetrics
}

func NewLifecycleMetrics(registerer prometheus.Registerer, cfg Config) *LifecycleMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)
	m := &LifecycleMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "assessly_invite_transitions_total",
			Help:        "Applied invite status transitions.",
			ConstLabels: labels,
		}, []string{"from", "to"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "assessly_license_reservations_total",
			Help:        "License seat reservation attempts by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "assessly_submissions_total",
			Help:        "Candidate result submissions by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}
	registerer.MustRegister(m.transitions, m.reservations, m.submissions)
	return m
}

func (m *LifecycleMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *LifecycleMetrics) IncReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

func (m *LifecycleMetrics) IncSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}
